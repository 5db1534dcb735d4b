// Package config loads server configuration from defaults, an
// optional stratum.yaml, and STRATUM_* environment variables.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the resolved configuration handed to constructors. There
// is no ambient global; whoever needs a value receives it explicitly.
type Config struct {
	// DataDir holds one SQLite database per project.
	DataDir string `mapstructure:"data_dir"`
	// ListenAddr is the HTTP bind address.
	ListenAddr string `mapstructure:"listen_addr"`
	// LogJSON switches console logging to JSON production output.
	LogJSON bool `mapstructure:"log_json"`
}

// SetDefaults registers default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("listen_addr", ":8042")
	v.SetDefault("log_json", false)
}

// New builds a viper instance wired to the standard sources: defaults,
// then an optional stratum.yaml in the working directory, then
// STRATUM_* environment variables (highest precedence).
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("stratum")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STRATUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load resolves configuration from the standard sources. A missing
// config file is fine; a malformed one is not.
func Load() (*Config, error) {
	return LoadWith(New())
}

// LoadWith resolves configuration from a prepared viper instance,
// typically one with CLI flags already bound.
func LoadWith(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// NewLogger builds the process logger. JSON mode uses zap's production
// encoder for machine consumption; otherwise development console
// output. verbose lowers the level to debug.
func NewLogger(jsonOutput, verbose bool) (*zap.SugaredLogger, error) {
	var zcfg zap.Config
	if jsonOutput {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger.Sugar(), nil
}
