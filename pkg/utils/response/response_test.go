package response

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/ai-router/pkg/utils/errors"
)

func TestSuccess(t *testing.T) {
	r := Success(map[string]int{"n": 1})
	assert.True(t, r.IsSuccess())
	assert.Equal(t, http.StatusOK, r.HTTPStatus())
}

func TestErr(t *testing.T) {
	r := Err(errors.ErrRAGDocumentNotFound.WithCause(stderrors.New("record not found")))
	assert.Equal(t, errors.ErrRAGDocumentNotFound.Code, r.Code)
	assert.Equal(t, http.StatusNotFound, r.HTTPStatus())
	assert.Equal(t, "Document not found", r.Message)
	assert.True(t, Err(nil).IsSuccess())
}

func TestFromError_HidesRawCause(t *testing.T) {
	r := FromError(fmt.Errorf("dial tcp 10.0.0.1:443: connection refused"))
	assert.Equal(t, errors.ErrInternal.Code, r.Code)
	assert.NotContains(t, r.Message, "10.0.0.1")
	assert.Equal(t, http.StatusInternalServerError, r.HTTPStatus())
}

func TestHTTPStatus_FallbackByCategory(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{errors.MakeCode(77, errors.CategoryRequest, 999), http.StatusBadRequest},
		{errors.MakeCode(77, errors.CategoryResource, 999), http.StatusNotFound},
		{errors.MakeCode(77, errors.CategoryRateLimit, 999), http.StatusTooManyRequests},
		{errors.MakeCode(77, errors.CategoryTimeout, 999), http.StatusGatewayTimeout},
		{errors.MakeCode(77, errors.CategoryDatabase, 999), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		r := &Response{Code: tt.code}
		assert.Equal(t, tt.want, r.HTTPStatus(), "code %d", tt.code)
	}
}
