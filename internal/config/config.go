// Package config loads server settings from an optional YAML file, a .env
// file and RADIO_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	CORS     CORSConfig     `yaml:"cors"`
	Stations StationsConfig `yaml:"stations"`
	Stream   StreamConfig   `yaml:"stream"`
	Resolver ResolverConfig `yaml:"resolver"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin"`
}

type StationsConfig struct {
	Defaults []string `yaml:"defaults"`
}

type StreamConfig struct {
	FFmpegPath     string `yaml:"ffmpeg_path"`
	BitrateKbps    int    `yaml:"bitrate_kbps"`
	ChunkSize      int    `yaml:"chunk_size"`
	ConsumerBuffer int    `yaml:"consumer_buffer"`
	EndDelayMs     int    `yaml:"end_delay_ms"`
}

type ResolverConfig struct {
	PipedMirrors  []string `yaml:"piped_mirrors"`
	TimeoutMs     int      `yaml:"timeout_ms"`
	SpotifyOEmbed string   `yaml:"spotify_oembed"`
}

// ValkeyConfig enables the resolver cache when Address is set.
type ValkeyConfig struct {
	Address    string `yaml:"address"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Host: "0.0.0.0", Port: 5000},
		CORS:     CORSConfig{AllowedOrigin: "*"},
		Stations: StationsConfig{Defaults: []string{"lofi"}},
		Stream: StreamConfig{
			FFmpegPath:     "ffmpeg",
			BitrateKbps:    128,
			ChunkSize:      4096,
			ConsumerBuffer: 64,
			EndDelayMs:     500,
		},
		Resolver: ResolverConfig{
			TimeoutMs:     10000,
			SpotifyOEmbed: "https://open.spotify.com/oembed",
		},
		Valkey:  ValkeyConfig{TTLSeconds: 6 * 60 * 60},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Listen.Host = envStr("RADIO_HOST", c.Listen.Host)
	c.Listen.Port = envInt("RADIO_PORT", envInt("PORT", c.Listen.Port))
	c.CORS.AllowedOrigin = envStr("RADIO_CORS_ORIGIN", c.CORS.AllowedOrigin)
	c.Stations.Defaults = envList("RADIO_DEFAULT_STATIONS", c.Stations.Defaults)

	c.Stream.FFmpegPath = envStr("RADIO_FFMPEG_PATH", c.Stream.FFmpegPath)
	c.Stream.BitrateKbps = envInt("RADIO_BITRATE_KBPS", c.Stream.BitrateKbps)
	c.Stream.ChunkSize = envInt("RADIO_CHUNK_SIZE", c.Stream.ChunkSize)
	c.Stream.ConsumerBuffer = envInt("RADIO_CONSUMER_BUFFER", c.Stream.ConsumerBuffer)
	c.Stream.EndDelayMs = envInt("RADIO_END_DELAY_MS", c.Stream.EndDelayMs)

	c.Resolver.PipedMirrors = envList("RADIO_PIPED_MIRRORS", c.Resolver.PipedMirrors)
	c.Resolver.TimeoutMs = envInt("RADIO_RESOLVER_TIMEOUT_MS", c.Resolver.TimeoutMs)
	c.Resolver.SpotifyOEmbed = envStr("RADIO_SPOTIFY_OEMBED", c.Resolver.SpotifyOEmbed)

	c.Valkey.Address = envStr("RADIO_VALKEY_ADDR", c.Valkey.Address)
	c.Valkey.TTLSeconds = envInt("RADIO_VALKEY_TTL_SECONDS", c.Valkey.TTLSeconds)

	c.Logging.Level = envStr("RADIO_LOG_LEVEL", c.Logging.Level)
	c.Logging.JSON = envBool("RADIO_LOG_JSON", c.Logging.JSON)
}

func (c *Config) Validate() error {
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port: invalid port %d", c.Listen.Port)
	}
	if c.Stream.BitrateKbps <= 0 {
		return fmt.Errorf("stream.bitrate_kbps: must be positive")
	}
	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("stream.chunk_size: must be positive")
	}
	if c.Stream.ConsumerBuffer <= 0 {
		return fmt.Errorf("stream.consumer_buffer: must be positive")
	}
	if c.Stream.EndDelayMs < 0 {
		return fmt.Errorf("stream.end_delay_ms: must not be negative")
	}
	if c.Valkey.Address != "" && c.Valkey.TTLSeconds <= 0 {
		return fmt.Errorf("valkey.ttl_seconds: must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

func (c *Config) EndDelay() time.Duration {
	return time.Duration(c.Stream.EndDelayMs) * time.Millisecond
}

func (c *Config) ResolverTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutMs) * time.Millisecond
}

func (c *Config) ValkeyTTL() time.Duration {
	return time.Duration(c.Valkey.TTLSeconds) * time.Second
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envList reads a comma-separated list.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
