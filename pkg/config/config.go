// Package config loads the settings used to open streams, from a YAML or
// TOML file and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/EmilyShepherd/appstream/pkg/client"
	"github.com/EmilyShepherd/appstream/pkg/stream"
)

const envPrefix = "APPSTREAM_"

type Config struct {
	// BaseURL is the URL request paths are relative to.
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// CAFile, if set, is the only CA bundle trusted for TLS.
	CAFile string `yaml:"ca_file" toml:"ca_file"`
	// ReadBufferSize is the most bytes read from a response at a time.
	ReadBufferSize int `yaml:"read_buffer_size" toml:"read_buffer_size"`
	// ChannelCapacity is how many records may wait for the consumer.
	ChannelCapacity int `yaml:"channel_capacity" toml:"channel_capacity"`
	// Codec is either "json" or "jsoniter".
	Codec    stream.Codec      `yaml:"codec" toml:"codec"`
	LogLevel string            `yaml:"log_level" toml:"log_level"`
	Headers  map[string]string `yaml:"headers" toml:"headers"`
}

// Defaults returns the configuration used for anything not set.
func Defaults() Config {
	return Config{
		ReadBufferSize:  stream.DefaultChunkSize,
		ChannelCapacity: stream.DefaultCapacity,
		Codec:           stream.CodecJSON,
		LogLevel:        "info",
	}
}

// Load reads the configuration file at path over the defaults. The
// format is chosen by the file's extension.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings with any APPSTREAM_* variables found by
// lookup, typically os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPrefix + "BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := lookup(envPrefix + "CA_FILE"); ok {
		c.CAFile = v
	}
	if v, ok := lookup(envPrefix + "CODEC"); ok {
		c.Codec = stream.Codec(v)
	}
	if v, ok := lookup(envPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	ints := map[string]*int{
		"READ_BUFFER_SIZE": &c.ReadBufferSize,
		"CHANNEL_CAPACITY": &c.ChannelCapacity,
	}
	for name, field := range ints {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*field = n
	}

	return nil
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must be set")
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("read_buffer_size must be positive, got %d", c.ReadBufferSize)
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("channel_capacity must be positive, got %d", c.ChannelCapacity)
	}
	switch c.Codec {
	case stream.CodecJSON, stream.CodecJSONIter:
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	if _, err := c.level(); err != nil {
		return err
	}

	return nil
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Client returns an HTTP transport for the configured server.
func (c Config) Client() (*client.Client, error) {
	var ca []byte
	if c.CAFile != "" {
		var err error
		if ca, err = os.ReadFile(c.CAFile); err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
	}

	kc, err := client.NewClient(c.BaseURL, ca)
	if err != nil {
		return nil, err
	}
	for name, value := range c.Headers {
		kc.Header.Set(name, value)
	}

	return kc, nil
}
