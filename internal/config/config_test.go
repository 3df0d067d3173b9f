package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"cursedprocs/internal/config"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CURSEDPROCS_CONFIG", "")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	c, err := config.Load(newFlags(t), "")
	require.NoError(t, err)
	require.Equal(t, 1, c.Parallel)
	require.Equal(t, 12, c.Total)
	require.False(t, c.Manual)
	require.Equal(t, 100*time.Millisecond, c.IdleDelay)
	require.Equal(t, 10, c.PageSize)
	require.True(t, c.Watch)
	require.Empty(t, c.Listen)
	require.Empty(t, c.File)

	sc := c.Supervisor()
	require.True(t, sc.Autostart)
	require.Equal(t, 1, sc.PerGroupLimit)
	require.Equal(t, 12, sc.TotalLimit)
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "cursedprocs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
parallel = 3
total = 20
idle_delay = "250ms"
listen = "localhost:9000"
`), 0o600))

	t.Setenv("CURSEDPROCS_TOTAL", "30")

	c, err := config.Load(newFlags(t, "--parallel=5"), path)
	require.NoError(t, err)
	require.Equal(t, 5, c.Parallel, "flag beats file")
	require.Equal(t, 30, c.Total, "env beats file")
	require.Equal(t, 250*time.Millisecond, c.IdleDelay)
	require.Equal(t, "localhost:9000", c.Listen)
	require.Equal(t, path, c.File)
}

func TestLoadManualFlag(t *testing.T) {
	isolate(t)

	c, err := config.Load(newFlags(t, "--manual"), "")
	require.NoError(t, err)
	require.True(t, c.Manual)
	require.False(t, c.Supervisor().Autostart)
}

func TestLoadConfigFromEnv(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "env.toml")
	require.NoError(t, os.WriteFile(path, []byte("page_size = 4\n"), 0o600))
	t.Setenv("CURSEDPROCS_CONFIG", path)

	c, err := config.Load(newFlags(t), "")
	require.NoError(t, err)
	require.Equal(t, 4, c.PageSize)
}

func TestLoadDefaultLocation(t *testing.T) {
	isolate(t)

	home := os.Getenv("HOME")
	dir := filepath.Join(home, ".config", "cursedprocs")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("watch = false\n"), 0o600))

	c, err := config.Load(newFlags(t), "")
	require.NoError(t, err)
	require.False(t, c.Watch)
}

func TestLoadErrors(t *testing.T) {
	isolate(t)

	_, err := config.Load(newFlags(t), filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	_, err = config.Load(newFlags(t, "--page-size=0"), "")
	require.ErrorContains(t, err, "page size must be positive")

	_, err = config.Load(newFlags(t, "--parallel=-1"), "")
	require.ErrorContains(t, err, "parallel must not be negative")
}
