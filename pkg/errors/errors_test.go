package errors

import (
	"database/sql"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrNotFound, "folder not found")
	require.Equal(t, "folder not found", err.Error())
	require.True(t, stdErrors.Is(err, ErrNotFound))
	require.False(t, stdErrors.Is(err, ErrAccessDenied))
	require.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom: %w", sql.ErrConnDone))
	require.Equal(t, ErrInternal.Code, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.Status)
	require.True(t, stdErrors.Is(appErr, sql.ErrConnDone))
}

func TestWithDetailsAndCodeOf(t *testing.T) {
	err := WithDetails(ErrRateLimited, map[string]interface{}{"resetTime": "soon"})
	require.Equal(t, "soon", err.Details["resetTime"])
	require.Nil(t, ErrRateLimited.Details)
	require.Equal(t, "RATE_LIMITED", CodeOf(err))
	require.Equal(t, "INTERNAL_ERROR", CodeOf(stdErrors.New("x")))
	require.Equal(t, "", CodeOf(nil))
}
