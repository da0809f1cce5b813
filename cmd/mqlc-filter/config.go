package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the settings of the filter tool, coming from flags,
// environment variables (MQLC_*), or an optional config file.
type Config struct {
	Filter     string `mapstructure:"filter"`
	Input      string `mapstructure:"input"`
	TrackIndex bool   `mapstructure:"track_index"`
	Count      bool   `mapstructure:"count"`
	Fallback   bool   `mapstructure:"fallback"`
	Config     string `mapstructure:"config"`
}

func init() {
	// Bind command-line flags
	pflag.String("filter", "", "Match filter to apply, as JSON")
	pflag.String("input", "", "NDJSON input file (default stdin)")
	pflag.Bool("track-index", false, "Prepend the matching array index to each output line")
	pflag.Bool("count", false, "Print only the number of matching documents")
	pflag.Bool("fallback", true, "Fall back to interpreted matching for unsupported predicates")
	pflag.String("config", "", "Path to the configuration file")

	f := pflag.CommandLine
	normalizeFunc := f.GetNormalizeFunc()
	f.SetNormalizeFunc(func(fs *pflag.FlagSet, name string) pflag.NormalizedName {
		result := normalizeFunc(fs, name)
		name = strings.ReplaceAll(string(result), "-", "_")
		return pflag.NormalizedName(name)
	})
}

func LoadConfig() (Config, error) {
	// Set default values
	viper.SetDefault("fallback", true)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)

	// Bind environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("MQLC")

	// Read configuration file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)

		if err := viper.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	// The filter may also come as the first positional arg.
	if cfg.Filter == "" && pflag.NArg() > 0 {
		cfg.Filter = pflag.Arg(0)
	}

	return cfg, nil
}
