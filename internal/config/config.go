// Package config wraps spf13/viper for the command line tools. Values come
// from, in increasing priority: defaults, a YAML or JSON file, environment
// variables and flags.
package config

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	spfviper "github.com/spf13/viper"
)

// Config wraps a viper instance.
type Config struct {
	v *spfviper.Viper
}

// New returns an empty Config reading environment variables that start
// with envPrefix. Key separators "." and "-" map to "_" in variable names,
// so "log.level" is read from PREFIX_LOG_LEVEL.
func New(envPrefix string) *Config {
	v := spfviper.New()
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}
	return &Config{v: v}
}

// LoadFile loads a YAML or JSON file. The type is taken from the extension
// (.yaml/.yml/.json).
func (c *Config) LoadFile(path string) error {
	c.v.SetConfigFile(path)

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		// leave the type to viper
	}

	if err := c.v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "loading config %s", path)
	}
	return nil
}

// BindFlags makes every flag of fs a config key of the same name.
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	return c.v.BindPFlags(fs)
}

func (c *Config) SetDefault(key string, value any) { c.v.SetDefault(key, value) }

func (c *Config) GetString(key string) string { return c.v.GetString(key) }

func (c *Config) GetBool(key string) bool { return c.v.GetBool(key) }

func (c *Config) GetInt(key string) int { return c.v.GetInt(key) }

func (c *Config) GetInt64(key string) int64 { return c.v.GetInt64(key) }

func (c *Config) IsSet(key string) bool { return c.v.IsSet(key) }

// Unmarshal decodes the whole configuration into dst, a pointer to a
// struct or a map.
func (c *Config) Unmarshal(dst any) error {
	return c.v.Unmarshal(dst)
}

// UnmarshalKey decodes the subtree at key into dst.
func (c *Config) UnmarshalKey(key string, dst any) error {
	return c.v.UnmarshalKey(key, dst)
}
