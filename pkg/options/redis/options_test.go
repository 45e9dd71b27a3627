package redis_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/ai-router/pkg/options/redis"
	"github.com/kart-io/ai-router/pkg/utils/json"
)

func TestOptions_PasswordRedacted(t *testing.T) {
	opts := options.NewOptions()
	opts.Password = "supersecret"

	data, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")
	assert.Contains(t, string(data), "[REDACTED]")
	assert.Contains(t, string(data), `"host":"127.0.0.1"`)
	assert.NotContains(t, opts.String(), "supersecret")

	opts.Password = ""
	data, err = json.Marshal(opts)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
}

func TestOptions_Validate(t *testing.T) {
	opts := options.NewOptions()
	assert.Empty(t, opts.Validate())

	opts.Host = ""
	opts.Port = 70000
	assert.Len(t, opts.Validate(), 2)
}

func TestOptions_PasswordFromEnv(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "from-env")
	opts := options.NewOptions()
	assert.Empty(t, opts.Validate())
	assert.Equal(t, "from-env", opts.Password)
}

func TestOptions_FlagsWithPrefix(t *testing.T) {
	opts := options.NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs, "cache")

	require.NoError(t, fs.Parse([]string{"--cache.redis.host=redis.local", "--cache.redis.port=6380"}))
	assert.Equal(t, "redis.local:6380", opts.Addr())
}
