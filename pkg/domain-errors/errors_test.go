package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("reads the outermost code", func(t *testing.T) {
		inner := New(CodeNotFound, "missing")
		outer := Wrap(inner, CodeDocumentUnavailable, "fetching")
		assert.Equal(t, CodeDocumentUnavailable, CodeOf(outer))
	})

	t.Run("uncoded errors report internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	})
}

func TestHasCode(t *testing.T) {
	inner := New(CodeNotFound, "missing")
	outer := Wrap(inner, CodeDocumentUnavailable, "fetching")

	assert.True(t, HasCode(outer, CodeDocumentUnavailable))
	assert.True(t, HasCode(outer, CodeNotFound), "codes deeper in the chain are found")
	assert.False(t, HasCode(outer, CodeUnauthorized))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "never happens"))
}

func TestUnwrapPreservesTheChain(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(fmt.Errorf("midway: %w", cause), CodeTimeout, "deadline")
	assert.ErrorIs(t, wrapped, cause)
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnknownIdentity:     http.StatusNotFound,
		CodeNotFound:            http.StatusNotFound,
		CodeUnauthorized:        http.StatusForbidden,
		CodeInvalidWindow:       http.StatusBadRequest,
		CodeInvalidInput:        http.StatusBadRequest,
		CodeSignerUnavailable:   http.StatusBadRequest,
		CodeSuperseded:          http.StatusConflict,
		CodeRejected:            http.StatusConflict,
		CodePointerConflict:     http.StatusConflict,
		CodeResolutionTimeout:   http.StatusGatewayTimeout,
		CodeTimeout:             http.StatusGatewayTimeout,
		CodeDocumentUnavailable: http.StatusBadGateway,
		CodeInternal:            http.StatusInternalServerError,
		Code("brand-new"):       http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
