package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesTemplate(t *testing.T) {
	err := Clone(ErrNotFound, "Request not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWrapAsKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := WrapAs(cause, ErrUploadFailed, "")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.Equal(t, "failed to store approved document: dial tcp: refused", err.Error())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("resolve: %w", ErrAlreadyResolved)
	assert.Equal(t, CodeAlreadyResolved, FromError(wrapped).Code)

	plain := FromError(errors.New("boom"))
	assert.Equal(t, CodeInternal, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
}
