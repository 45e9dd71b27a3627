package biz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/internal/airouter/biz"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

func TestParams_Accessors(t *testing.T) {
	p := biz.Params{
		"error_code": "  E101 ",
		"amount":     12.5,
		"count":      "3",
		"blank":      "   ",
		"flag":       true,
		"missing":    nil,
	}

	assert.True(t, p.Has("error_code"))
	assert.False(t, p.Has("blank"))
	assert.False(t, p.Has("missing"))
	assert.False(t, p.Has("absent"))

	assert.Equal(t, "E101", p.String("error_code"))
	assert.Equal(t, "12.5", p.String("amount"))
	assert.Equal(t, "true", p.String("flag"))
	assert.Equal(t, "", p.String("absent"))

	f, ok := p.Float("amount")
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)
	f, ok = p.Float("count")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	_, ok = p.Float("error_code")
	assert.False(t, ok)
}

type lookupRequest struct {
	ErrorCode string `json:"error_code" binding:"required,error_code"`
	Terminal  string `json:"terminal" binding:"omitempty,max=32"`
}

func TestParams_Decode(t *testing.T) {
	var req lookupRequest
	require.NoError(t, biz.Params{"error_code": "E101", "extra": 1}.Decode(&req))
	assert.Equal(t, "E101", req.ErrorCode)

	err := biz.Params{"error_code": "printer jam"}.Decode(&lookupRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParams.Code))
	assert.Contains(t, err.Error(), "error_code")

	// 类型不匹配
	err = biz.Params{"error_code": []any{"E1"}}.Decode(&lookupRequest{})
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParams.Code))
}

func TestParams_Validate(t *testing.T) {
	rules := map[string]string{
		"error_code": "required,error_code",
		"terminal":   "omitempty,max=8",
	}

	assert.NoError(t, biz.Params{"error_code": " E101 "}.Validate(rules))
	assert.NoError(t, biz.Params{}.Validate(nil))

	err := biz.Params{"terminal": "a-very-long-terminal-name"}.Validate(rules)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidParams.Code))
	assert.Contains(t, err.Error(), "error_code, terminal")
}
