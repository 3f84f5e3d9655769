package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"gateway.port", []string{"gateway", "port"}, false},
		{"models.providers.gemini.apiKey", []string{"models", "providers", "gemini", "apiKey"}, false},
		{"", nil, true},
		{"a..b", nil, true},
		{"agent.", nil, true},
		{"__proto__.x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSetUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"agent": map[string]any{"maxSteps": 12, "summaryThreshold": 6},
	}

	val, ok := GetValueAtPath(root, []string{"agent", "maxSteps"})
	assert.True(t, ok)
	assert.Equal(t, 12, val)

	_, ok = GetValueAtPath(root, []string{"agent", "missing"})
	assert.False(t, ok)

	SetValueAtPath(root, []string{"retriever", "backend"}, "local")
	val, ok = GetValueAtPath(root, []string{"retriever", "backend"})
	assert.True(t, ok)
	assert.Equal(t, "local", val)

	SetValueAtPath(root, []string{"agent", "maxSteps", "nested"}, 1)
	val, _ = GetValueAtPath(root, []string{"agent", "maxSteps", "nested"})
	assert.Equal(t, 1, val, "non-map intermediates are replaced")

	assert.True(t, UnsetValueAtPath(root, []string{"agent", "summaryThreshold"}))
	assert.False(t, UnsetValueAtPath(root, []string{"agent", "summaryThreshold"}))
	assert.False(t, UnsetValueAtPath(root, []string{"nope", "x"}))
}

func TestResolvePaths(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("STEVE_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "steve.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(tmp, ".env"), paths.Env)
	assert.Equal(t, filepath.Join(tmp, "knowledge.db"), paths.Knowledge)
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("STEVE_HOME", filepath.Join(t.TempDir(), "home"))

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
