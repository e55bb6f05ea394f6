// Package config loads twister settings from defaults, an optional YAML
// file, TWISTER_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"twister/pkg/peer"
	"twister/pkg/session"
	"twister/pkg/transport"
)

const EnvPrefix = "TWISTER"

// Settings is the resolved configuration.
type Settings struct {
	URL              string
	Range            uint32
	Target           int
	Placeholder      int
	Timeout          time.Duration
	HandshakeTimeout time.Duration
	Insecure         bool
	Verbose          bool
	MetricsAddr      string

	Serve ServeSettings
}

type ServeSettings struct {
	Addr        string
	Flag        string
	Seed        int64
	Rate        float64
	Burst       int
	IdleTimeout time.Duration
}

// New returns a viper instance with every default set and environment
// overrides enabled.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("url", "ws://127.0.0.1:3080/ws")
	v.SetDefault("range", session.DefaultRange)
	v.SetDefault("target", session.DefaultTarget)
	v.SetDefault("placeholder", session.DefaultPlaceholder)
	v.SetDefault("timeout", transport.DefaultReadTimeout)
	v.SetDefault("handshake_timeout", transport.DefaultHandshakeTimeout)
	v.SetDefault("insecure", false)
	v.SetDefault("verbose", false)
	v.SetDefault("metrics_addr", "")

	v.SetDefault("serve.addr", peer.DefaultAddr)
	v.SetDefault("serve.flag", peer.DefaultFlag)
	v.SetDefault("serve.seed", -1)
	v.SetDefault("serve.rate", 0)
	v.SetDefault("serve.burst", 1)
	v.SetDefault("serve.idle_timeout", peer.DefaultIdleTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file when given, or twister.yaml from the working directory or
// $HOME/.twister when present, and resolves the settings.
func Load(v *viper.Viper, file string) (*Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("twister")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.twister")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	s := &Settings{
		URL:              v.GetString("url"),
		Range:            v.GetUint32("range"),
		Target:           v.GetInt("target"),
		Placeholder:      v.GetInt("placeholder"),
		Timeout:          v.GetDuration("timeout"),
		HandshakeTimeout: v.GetDuration("handshake_timeout"),
		Insecure:         v.GetBool("insecure"),
		Verbose:          v.GetBool("verbose"),
		MetricsAddr:      v.GetString("metrics_addr"),
		Serve: ServeSettings{
			Addr:        v.GetString("serve.addr"),
			Flag:        v.GetString("serve.flag"),
			Seed:        v.GetInt64("serve.seed"),
			Rate:        v.GetFloat64("serve.rate"),
			Burst:       v.GetInt("serve.burst"),
			IdleTimeout: v.GetDuration("serve.idle_timeout"),
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings shared by every command.
func (s *Settings) Validate() error {
	if s.Range == 0 {
		return fmt.Errorf("range must be positive")
	}
	if s.Target <= 0 {
		return fmt.Errorf("target must be positive, got %d", s.Target)
	}
	if s.Timeout < 0 || s.HandshakeTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// ValidateTarget checks the peer URL a crack run will dial.
func (s *Settings) ValidateTarget() error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", s.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid url %q: scheme must be ws or wss", s.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", s.URL)
	}
	return nil
}

func (s *Settings) Session() session.Config {
	return session.Config{
		Range:       s.Range,
		Target:      s.Target,
		Placeholder: s.Placeholder,
	}
}

func (s *Settings) Transport() transport.Options {
	opts := transport.DefaultOptions()
	opts.ReadTimeout = s.Timeout
	opts.HandshakeTimeout = s.HandshakeTimeout
	opts.InsecureSkipVerify = s.Insecure
	return opts
}

func (s *Settings) Peer() peer.Config {
	return peer.Config{
		Addr:        s.Serve.Addr,
		Range:       s.Range,
		Target:      s.Target,
		Flag:        s.Serve.Flag,
		Seed:        s.Serve.Seed,
		Rate:        s.Serve.Rate,
		Burst:       s.Serve.Burst,
		IdleTimeout: s.Serve.IdleTimeout,
	}
}

// Dump renders the settings as YAML, durations in their string form.
func (s *Settings) Dump() ([]byte, error) {
	out := yaml.MapSlice{
		{Key: "url", Value: s.URL},
		{Key: "range", Value: s.Range},
		{Key: "target", Value: s.Target},
		{Key: "placeholder", Value: s.Placeholder},
		{Key: "timeout", Value: s.Timeout.String()},
		{Key: "handshake_timeout", Value: s.HandshakeTimeout.String()},
		{Key: "insecure", Value: s.Insecure},
		{Key: "verbose", Value: s.Verbose},
		{Key: "metrics_addr", Value: s.MetricsAddr},
		{Key: "serve", Value: yaml.MapSlice{
			{Key: "addr", Value: s.Serve.Addr},
			{Key: "flag", Value: s.Serve.Flag},
			{Key: "seed", Value: s.Serve.Seed},
			{Key: "rate", Value: s.Serve.Rate},
			{Key: "burst", Value: s.Serve.Burst},
			{Key: "idle_timeout", Value: s.Serve.IdleTimeout.String()},
		}},
	}
	return yaml.Marshal(out)
}
