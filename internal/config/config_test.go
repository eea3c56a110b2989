package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "dev-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rxintake", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "http://localhost:5000", cfg.Extraction.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Intake.RedirectDelay)
	assert.Equal(t, "/dashboard", cfg.Intake.RedirectTarget)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Empty(t, cfg.Handoff.KafkaBrokers)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "dev-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EXTRACTION_BASE_URL", "http://extractor:5000/")
	t.Setenv("INTAKE_REDIRECT_DELAY", "250ms")
	t.Setenv("HANDOFF_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://extractor:5000", cfg.Extraction.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Intake.RedirectDelay)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Handoff.KafkaBrokers)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET is required")
}

func TestLoad_ShortSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_InvalidExtractionURL(t *testing.T) {
	t.Setenv("SESSION_SECRET", "dev-secret")
	t.Setenv("EXTRACTION_BASE_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACTION_BASE_URL")
}

func writeEnvFile(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
	t.Chdir(dir)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	writeEnvFile(t, "SESSION_SECRET=from-file\nSERVER_PORT=7070\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Session.Secret)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SESSION_SECRET", "dev-secret")

	_, err := Load()
	require.NoError(t, err)
}

func TestLoad_MalformedEnvFile(t *testing.T) {
	writeEnvFile(t, "this line is not an assignment\n")
	t.Setenv("SESSION_SECRET", "dev-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading .env")
}
