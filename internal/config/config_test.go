package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()

	cfg, err := Load(Options{HomeDir: home, EnvFile: filepath.Join(home, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".atelier", "atelier.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(home, ".atelier", "templates"), cfg.TemplatesDir)
	assert.Equal(t, filepath.Join(home, ".atelier", "policies"), cfg.PoliciesDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 64, cfg.NotifyBuffer)
	assert.Equal(t, []string{"owner"}, cfg.Roles)
	assert.Empty(t, cfg.Actor)
}

func TestLoad_ConfigFileInHome(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".atelier", "atelier.yaml"), `
db_path: /srv/atelier/plans.db
log_level: DEBUG
log_format: json
notify_buffer: 8
actor: marta
roles: [architect]
`)

	cfg, err := Load(Options{HomeDir: home, EnvFile: filepath.Join(home, "missing.env")})
	require.NoError(t, err)
	assert.Equal(t, "/srv/atelier/plans.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 8, cfg.NotifyBuffer)
	assert.Equal(t, "marta", cfg.Actor)
	assert.Equal(t, []string{"architect"}, cfg.Roles)
}

func TestLoad_ExplicitTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	writeFile(t, path, "templates_dir = \"/opt/templates\"\nnotify_buffer = 16\n")

	cfg, err := Load(Options{HomeDir: dir, ConfigFile: path, EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)
	assert.Equal(t, "/opt/templates", cfg.TemplatesDir)
	assert.Equal(t, 16, cfg.NotifyBuffer)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(Options{HomeDir: dir, ConfigFile: filepath.Join(dir, "nope.yaml"), EnvFile: filepath.Join(dir, "missing.env")})
	assert.Error(t, err)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, ".atelier", "atelier.yaml"), "log_level: info\n")
	t.Setenv("ATELIER_LOG_LEVEL", "error")
	t.Setenv("ATELIER_ROLES", "manager,architect")

	cfg, err := Load(Options{HomeDir: home, EnvFile: filepath.Join(home, "missing.env")})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, []string{"manager", "architect"}, cfg.Roles)
}

func TestLoad_DotEnvFile(t *testing.T) {
	home := t.TempDir()
	envFile := filepath.Join(home, "atelier.env")
	writeFile(t, envFile, "ATELIER_ACTOR=joana\nATELIER_NOTIFY_BUFFER=4\n")
	t.Cleanup(func() {
		os.Unsetenv("ATELIER_ACTOR")
		os.Unsetenv("ATELIER_NOTIFY_BUFFER")
	})

	cfg, err := Load(Options{HomeDir: home, EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "joana", cfg.Actor)
	assert.Equal(t, 4, cfg.NotifyBuffer)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"log level", "ATELIER_LOG_LEVEL", "verbose"},
		{"log format", "ATELIER_LOG_FORMAT", "xml"},
		{"notify buffer", "ATELIER_NOTIFY_BUFFER", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv(tt.key, tt.val)
			_, err := Load(Options{HomeDir: home, EnvFile: filepath.Join(home, "missing.env")})
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}
