package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSugarEnvironments(t *testing.T) {
	for _, env := range []string{"dev", "prod"} {
		t.Run(env, func(t *testing.T) {
			logger, err := NewSugar(env, FileConfig{})
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Infow("hello", "env", env)
		})
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.log")

	logger, err := NewSugar("prod", FileConfig{Path: path})
	require.NoError(t, err)
	logger.Infow("redemption settled", "claimAsset", "WETH")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"redemption settled"`)
	assert.Contains(t, string(data), `"claimAsset":"WETH"`)
	assert.Contains(t, string(data), `"timestamp"`)
}
