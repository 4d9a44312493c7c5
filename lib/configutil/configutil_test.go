package configutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name     string            `json:"name"`
	Pacing   Duration          `json:"pacing"`
	Timeout  Duration          `json:"timeout"`
	Secret   string            `json:"secret"`
	Weights  map[string]int    `json:"weights"`
	Labels   map[string]string `json:"labels"`
	Disabled bool              `json:"disabled"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CPTRACKER_TEST_SECRET", "hunter2")

	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		name: "base",
		pacing: "5s",
		timeout: 30,
		secret: "${CPTRACKER_TEST_SECRET}",
		weights: { codeforces: 1 },
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{
		name: "local",
		weights: { leetcode: 2 },
	}`)

	cfg, err := ReadConfig(filepath.Join(dir, "config.json5"), testConfig{
		Labels: map[string]string{"env": "test"},
	})
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Name)
	require.Equal(t, 5*time.Second, cfg.Pacing.Duration)
	require.Equal(t, 30*time.Second, cfg.Timeout.Duration)
	require.Equal(t, "hunter2", cfg.Secret)
	require.Equal(t, map[string]int{"codeforces": 1, "leetcode": 2}, cfg.Weights)
	require.Equal(t, "test", cfg.Labels["env"])
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "config.json5"), testConfig{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

type validatedConfig struct {
	Name string `json:"name"`
}

func (c *validatedConfig) Validate() error {
	if c.Name == "" {
		return os.ErrInvalid
	}
	return nil
}

func TestReadConfigValidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{ name: "" }`)

	_, err := ReadConfig(filepath.Join(dir, "config.json5"), validatedConfig{})
	require.ErrorIs(t, err, os.ErrInvalid)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0777))
	writeFile(t, filepath.Join(root, "telemetry.json5"), `{ name: "found" }`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	cfg, err := ReadRecursively("telemetry.json5", testConfig{})
	require.NoError(t, err)
	require.Equal(t, "found", cfg.Name)
}

func TestDurationOr(t *testing.T) {
	require.Equal(t, time.Minute, Duration{}.Or(time.Minute))
	require.Equal(t, time.Second, Duration{Duration: time.Second}.Or(time.Minute))
}
