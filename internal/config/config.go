package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	// Serial is the mount's serial device. Exactly one of Serial and TCP is set.
	Serial string `mapstructure:"serial"`
	// TCP is the host:port of a WiFi serial bridge.
	TCP          string        `mapstructure:"tcp"`
	Addr         string        `mapstructure:"addr"`
	RotctldAddr  string        `mapstructure:"rotctld_addr"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StaticDir    string        `mapstructure:"static_dir"`
	// Trace logs every byte exchanged with the mount.
	Trace bool `mapstructure:"trace"`
}

// Flags returns the flag set understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("nexstar_server", pflag.ContinueOnError)
	fs.String("config", "", "config file (default nexstar.yaml in . or /etc/nexstar)")
	fs.String("serial", "", "serial port name")
	fs.String("tcp", "", "host:port of a TCP serial bridge")
	fs.String("addr", "127.0.0.1:8502", "HTTP listen address")
	fs.String("rotctld_addr", "127.0.0.1:4533", "rotctld listen address; empty disables")
	fs.Duration("poll_interval", time.Second, "status poll interval")
	fs.String("static_dir", "static", "directory containing static files")
	fs.Bool("trace", false, "log mount traffic")
	return fs
}

// Load reads configuration from flags, NEXSTAR_* environment variables and
// an optional nexstar.yaml, in that order of precedence.
func Load(args []string) (*Config, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
	} else {
		v.SetConfigName("nexstar")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/nexstar")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	// NEXSTAR_ROTCTLD_ADDR -> rotctld_addr
	v.SetEnvPrefix("NEXSTAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration names one mount link and sane
// intervals.
func (c *Config) Validate() error {
	var errs []string
	switch {
	case c.Serial == "" && c.TCP == "":
		errs = append(errs, "one of serial or tcp is required")
	case c.Serial != "" && c.TCP != "":
		errs = append(errs, "serial and tcp are mutually exclusive")
	}
	if c.Addr == "" {
		errs = append(errs, "addr is required")
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("poll_interval must be positive, got %v", c.PollInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
