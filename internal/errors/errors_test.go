package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := fmt.Errorf("run job: %w", Transcription(3, cause))

	assert.True(t, Is(err, ErrTranscription))
	assert.True(t, Is(err, cause))
	assert.False(t, Is(err, ErrInput))
	assert.Equal(t, "run job: transcribe chunk 3: quota exceeded", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Input("empty audio"), http.StatusBadRequest},
		{NotFound("job"), http.StatusNotFound},
		{Unavailable("local", nil), http.StatusServiceUnavailable},
		{Fetch("https://example.com", errors.New("boom")), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "%v", tc.err)
	}
}

func TestWithCauseDoesNotMutate(t *testing.T) {
	base := NotFound("chunk")
	wrapped := base.WithCause(errors.New("gone"))
	assert.Nil(t, base.Cause)
	assert.EqualError(t, wrapped, "chunk not found: gone")
}
