package main

import (
	"github.com/retail-ai-inc/savegame/pkg/config"
	"github.com/spf13/pflag"
)

// flagConfig holds command line settings that take precedence over the
// configuration file and environment.
type flagConfig struct {
	configPath string
	logLevel   string
	listen     string
}

func newFlagConfigFromFlags(flags *pflag.FlagSet) *flagConfig {
	fc := &flagConfig{}
	flags.StringVarP(&fc.configPath, "config", "c", "", "Path to the YAML configuration file (default $CONFIG_PATH or configs/config.yaml)")
	flags.StringVar(&fc.logLevel, "log-level", "", "Override the configured log level")
	flags.StringVar(&fc.listen, "listen", "", "Override the configured listen address")
	return fc
}

func (fc *flagConfig) load() (*config.Config, error) {
	cfg, err := config.NewConfig(fc.configPath)
	if err != nil {
		return nil, err
	}
	if fc.logLevel != "" {
		cfg.LogLevel = fc.logLevel
	}
	if fc.listen != "" {
		cfg.ListenAddress = fc.listen
	}
	return cfg, nil
}
