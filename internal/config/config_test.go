package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brody/brody-back/internal/ai"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DEFAULT_MODEL", "FALLBACK_MODEL", "SUMMARY_MODEL", "ONLY_FREE_MODELS",
		"FREE_MODEL_ALLOWLIST", "OPENROUTER_BASE_URL", "OPENROUTER_API_KEY", "OPENROUTER_TIMEOUT_MS",
	} {
		t.Setenv(key, "")
	}
	require.NoError(t, os.Unsetenv("ONLY_FREE_MODELS"))
	require.NoError(t, os.Unsetenv("FREE_MODEL_ALLOWLIST"))

	cfg := Load()

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, ai.DefaultModel, cfg.DefaultModel)
	assert.Equal(t, ai.FallbackModel, cfg.SummaryModel)
	assert.True(t, cfg.OnlyFreeModels)
	assert.Equal(t, ai.DefaultFreeAllowlist, cfg.FreeModelAllowlist)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouterBaseURL)
	assert.Empty(t, cfg.OpenRouterAPIKey)
	assert.Equal(t, 20*time.Second, cfg.OpenRouterTimeout())
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL())
}

func TestLoadModelOverrides(t *testing.T) {
	t.Setenv("DEFAULT_MODEL", "base/model")
	t.Setenv("FALLBACK_MODEL", "fallback/model")
	t.Setenv("EMAIL_MODEL", "email/model")
	t.Setenv("TASK_MODEL", "")
	t.Setenv("SUMMARY_MODEL", "")
	t.Setenv("FREE_MODEL_ALLOWLIST", " a:free , ,b:free ")

	cfg := Load()
	models := cfg.ModelConfig()

	assert.Equal(t, "email/model", models.ModelFor(ai.TaskEmailClassification))
	assert.Equal(t, "base/model", models.ModelFor(ai.TaskTaskGeneration))
	assert.Equal(t, "fallback/model", models.ModelFor(ai.TaskSummarization))
	assert.Equal(t, []string{"a:free", "b:free"}, cfg.FreeTierPolicy().Allowlist())
}

func TestEmptyAllowlistMeansNoModelAvailable(t *testing.T) {
	t.Setenv("ONLY_FREE_MODELS", "true")
	t.Setenv("FREE_MODEL_ALLOWLIST", "")

	cfg := Load()
	assert.Empty(t, cfg.FreeModelAllowlist)

	_, ok := ai.NewModelSelector(cfg.ModelConfig(), cfg.FreeTierPolicy()).Resolve(ai.TaskEmailClassification, "")
	assert.False(t, ok)
}

func TestOnlyFreeTruthyForms(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"TRUE":  true,
		"Yes":   true,
		"0":     false,
		"false": false,
		"on":    false,
		"":      false,
	}
	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("ONLY_FREE_MODELS", value)
			assert.Equal(t, want, Load().OnlyFreeModels)
		})
	}
}

func TestLoadDotEnvKeepsProcessValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BRODY_TEST_A=from-file\nBRODY_TEST_B=\"quoted value\"\n"), 0o600))

	t.Setenv("BRODY_TEST_A", "from-process")
	t.Setenv("BRODY_TEST_B", "")
	require.NoError(t, os.Unsetenv("BRODY_TEST_B"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	t.Cleanup(func() { _ = os.Unsetenv("BRODY_TEST_B") })

	assert.Equal(t, "from-process", os.Getenv("BRODY_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("BRODY_TEST_B"))
}
