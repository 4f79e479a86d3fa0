package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrLinkInvalid is returned for malformed or tampered link tokens.
	ErrLinkInvalid = errors.New("invalid link token")
	// ErrLinkExpired is returned for well-formed tokens past their expiry.
	ErrLinkExpired = errors.New("link token expired")
)

// LinkClaims is the payload embedded in a signed download link.
type LinkClaims struct {
	FileID    string
	IssuedBy  string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token granting issuedBy's view of fileID until the TTL elapses.
func (s *SignedURLSigner) Generate(fileID, issuedBy string) (string, time.Time, error) {
	if fileID == "" || issuedBy == "" {
		return "", time.Time{}, fmt.Errorf("fileID and issuedBy required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	issuer := base64.RawURLEncoding.EncodeToString([]byte(issuedBy))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{fileID, ts, issuer, s.sign(fileID, ts, issuer)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded claims.
func (s *SignedURLSigner) Parse(token string) (*LinkClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrLinkInvalid
	}
	fileID, ts, issuer, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(fileID, ts, issuer)), []byte(signature)) {
		return nil, ErrLinkInvalid
	}
	rawIssuer, err := base64.RawURLEncoding.DecodeString(issuer)
	if err != nil {
		return nil, ErrLinkInvalid
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, ErrLinkInvalid
	}
	claims := &LinkClaims{FileID: fileID, IssuedBy: string(rawIssuer), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(claims.ExpiresAt) {
		return claims, ErrLinkExpired
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(fileID, ts, issuer string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileID + "|" + ts + "|" + issuer))
	return hex.EncodeToString(mac.Sum(nil))
}
