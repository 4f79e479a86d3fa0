package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "file-1", claims.FileID)
	require.Equal(t, "user-1", claims.IssuedBy)
	require.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	claims, err := signer.Parse(token)
	require.ErrorIs(t, err, ErrLinkExpired)
	require.Equal(t, "file-1", claims.FileID)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("file-1", "user-1")
	require.NoError(t, err)

	tampered := "file-2" + strings.TrimPrefix(token, "file-1")
	_, err = signer.Parse(tampered)
	require.ErrorIs(t, err, ErrLinkInvalid)

	_, err = NewSignedURLSigner("other", time.Hour).Parse(token)
	require.ErrorIs(t, err, ErrLinkInvalid)

	_, err = signer.Parse("garbage")
	require.ErrorIs(t, err, ErrLinkInvalid)
}
