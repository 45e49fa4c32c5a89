package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	cloned := Clone(ErrDuplicateCheckin, "already checked in")
	wrapped := fmt.Errorf("check in: %w", cloned)

	assert.True(t, stderrors.Is(wrapped, ErrDuplicateCheckin))
	assert.False(t, stderrors.Is(wrapped, ErrOutOfRange))
	assert.Equal(t, "already checked in", cloned.Message)
	assert.Equal(t, "attendance already recorded for this session", ErrDuplicateCheckin.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(stderrors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestWrapAsKeepsKind(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := WrapAs(cause, ErrUpstreamWrite, "")
	assert.True(t, stderrors.Is(err, ErrUpstreamWrite))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.Contains(t, err.Error(), "connection reset")
}
