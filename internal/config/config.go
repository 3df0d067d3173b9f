// Package config layers defaults, an optional TOML file, CURSEDPROCS_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cursedprocs/internal/supervisor"
)

const envPrefix = "CURSEDPROCS"

// Config holds application configuration.
type Config struct {
	Parallel  int           `mapstructure:"parallel"`
	Total     int           `mapstructure:"total"`
	Manual    bool          `mapstructure:"manual"`
	IdleDelay time.Duration `mapstructure:"idle_delay"`
	PageSize  int           `mapstructure:"page_size"`
	Listen    string        `mapstructure:"listen"`
	LogFile   string        `mapstructure:"log_file"`
	Verbose   bool          `mapstructure:"verbose"`
	Watch     bool          `mapstructure:"watch"`

	// File is the config file actually read, if any.
	File string `mapstructure:"-"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"parallel":   "parallel",
	"total":      "total",
	"manual":     "manual",
	"idle-delay": "idle_delay",
	"page-size":  "page_size",
	"listen":     "listen",
	"log-file":   "log_file",
	"verbose":    "verbose",
	"watch":      "watch",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := supervisor.DefaultConfig()
	fs.Int("parallel", d.PerGroupLimit, "Number of parallel processes per group.")
	fs.Int("total", d.TotalLimit, "Number of total parallel processes.")
	fs.Bool("manual", !d.Autostart, "Processes must be started manually.")
	fs.Duration("idle-delay", d.IdleDelay, "Pause between ticks that produced no output.")
	fs.Int("page-size", d.PageSize, "Rows moved by PAGE UP and PAGE DOWN.")
	fs.String("listen", "", "Serve the remote dashboard on this address, e.g. localhost:8420.")
	fs.String("log-file", "", "Append JSON logs to this file.")
	fs.Bool("verbose", false, "Verbose logging.")
	fs.Bool("watch", true, "Watch the command file and flag changes.")
}

// Load resolves the configuration. path overrides the config file lookup;
// an explicit file that cannot be read is an error, a missing default one
// is not.
func Load(fs *pflag.FlagSet, path string) (Config, error) {
	v := viper.New()

	// default values
	d := supervisor.DefaultConfig()
	v.SetDefault("parallel", d.PerGroupLimit)
	v.SetDefault("total", d.TotalLimit)
	v.SetDefault("manual", !d.Autostart)
	v.SetDefault("idle_delay", d.IdleDelay)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("listen", "")
	v.SetDefault("log_file", "")
	v.SetDefault("verbose", false)
	v.SetDefault("watch", true)

	v.SetConfigType("toml")
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cursedprocs"))
		}
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.File = v.ConfigFileUsed()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects limits and pacing values the supervisor cannot use.
func (c Config) Validate() error {
	switch {
	case c.Parallel < 0:
		return fmt.Errorf("parallel must not be negative, got %d", c.Parallel)
	case c.Total < 0:
		return fmt.Errorf("total must not be negative, got %d", c.Total)
	case c.IdleDelay <= 0:
		return fmt.Errorf("idle delay must be positive, got %s", c.IdleDelay)
	case c.PageSize <= 0:
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	return nil
}

// Supervisor returns the supervisor settings.
func (c Config) Supervisor() supervisor.Config {
	return supervisor.Config{
		PerGroupLimit: c.Parallel,
		TotalLimit:    c.Total,
		Autostart:     !c.Manual,
		IdleDelay:     c.IdleDelay,
		PageSize:      c.PageSize,
	}
}
