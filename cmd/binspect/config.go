package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the optional configuration file at
// ~/.config/binspect/config.yaml. Pointer fields distinguish "not set" from
// zero values.
type Config struct {
	Output    string `yaml:"output"`
	Format    string `yaml:"format"`
	DumpLimit *int64 `yaml:"dump_limit"`

	ServerAddress string `yaml:"server_address"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "binspect", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig() (Config, error) {
	return loadConfigFrom(configPath())
}

func loadConfigFrom(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyInspectConfig fills inspect command defaults from the config file
// when the corresponding flag was not set on the command line.
func applyInspectConfig(c *cli.Command, cfg Config, output, format *string, dumpLimit *int64) {
	if cfg.Output != "" && !c.IsSet("output") {
		*output = cfg.Output
	}
	if cfg.Format != "" && !c.IsSet("format") {
		*format = cfg.Format
	}
	if cfg.DumpLimit != nil && !c.IsSet("dump-limit") {
		*dumpLimit = *cfg.DumpLimit
	}
}

// applyServeConfig fills serve command defaults from the config file.
func applyServeConfig(c *cli.Command, cfg Config, addr, logLevel, logFormat *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		*logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		*logFormat = cfg.LogFormat
	}
}
