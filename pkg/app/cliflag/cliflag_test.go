package cliflag_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/ai-router/pkg/app/cliflag"
)

func TestNamedFlagSets_KeepsOrder(t *testing.T) {
	var fss cliflag.NamedFlagSets
	fss.FlagSet("router").String("router.mode", "", "")
	fss.FlagSet("llm").String("llm.provider", "deepseek", "LLM provider")
	fss.FlagSet("router").Int("router.max", 1, "")
	fss.FlagSet("empty")

	assert.Equal(t, []string{"router", "llm", "empty"}, fss.Order)
	assert.NotNil(t, fss.FlagSets["router"].Lookup("router.max"))

	var buf bytes.Buffer
	cliflag.PrintSections(&buf, fss, 0)
	out := buf.String()
	assert.Contains(t, out, "Router flags:")
	assert.Contains(t, out, "--llm.provider")
	assert.NotContains(t, out, "Empty flags:")
}
