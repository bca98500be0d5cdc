package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("User not found")))
	assert.Equal(t, CodeForbidden, CodeOf(fmt.Errorf("send: %w", Forbidden("nope"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := Internal("failed to insert user", errors.New("connection refused 10.0.0.3"))

	assert.Equal(t, "Internal server error", PublicMessage(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "Invalid action", PublicMessage(BadInput("Invalid action")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("cause")
	assert.ErrorIs(t, Internal("op", cause), cause)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeNotFound:  http.StatusNotFound,
		CodeConflict:  http.StatusBadRequest,
		CodeBadInput:  http.StatusBadRequest,
		CodeForbidden: http.StatusForbidden,
		CodeInternal:  http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}
