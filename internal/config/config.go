package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/bedctl/internal/registry"
	"github.com/danmuck/bedctl/internal/server"
	"github.com/danmuck/bedctl/internal/sink"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the full bedctl service configuration.
type Config struct {
	ID          string
	ListenAddr  string
	HTTPAddr    string
	CorsOrigins []string

	Server   server.Config
	Registry registry.Config
	Sink     sink.Config
}

type fileConfig struct {
	ID            string     `toml:"id"`
	ListenAddr    string     `toml:"listen_addr"`
	HTTPAddr      string     `toml:"http_addr"`
	ReadTimeout   string     `toml:"read_timeout"`
	WriteTimeout  string     `toml:"write_timeout"`
	MaxFrameBytes int        `toml:"max_frame_bytes"`
	Rooms         []string   `toml:"rooms"`
	RoomCapacity  int        `toml:"room_capacity"`
	JoinStates    []string   `toml:"join_states"`
	Tags          []string   `toml:"tags"`
	CorsOrigins   []string   `toml:"cors_origins"`
	Sink          sinkConfig `toml:"sink"`
}

type sinkConfig struct {
	Kind        string `toml:"kind"`
	URL         string `toml:"url"`
	Database    string `toml:"database"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	Timeout     string `toml:"timeout"`
	RedisAddr   string `toml:"redis_addr"`
	RedisDB     int    `toml:"redis_db"`
	RedisStream string `toml:"redis_stream"`
	RedisMaxLen int64  `toml:"redis_maxlen"`
}

func Default() Config {
	return Config{
		ID:          "bedctl",
		ListenAddr:  ":5000",
		HTTPAddr:    ":8080",
		CorsOrigins: []string{"http://localhost:3000"},
		Server:      server.DefaultConfig(),
		Registry:    registry.Config{JoinStates: append([]string(nil), registry.DefaultJoinStates...)},
		Sink:        sink.DefaultConfig(),
	}
}

// Load starts from Default and overrides only the keys present in path.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load bedctl config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("read_timeout") {
		d, err := parseDuration("read_timeout", raw.ReadTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Server.ReadTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := parseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Server.WriteTimeout = d
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.Server.Limits.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("rooms") {
		cfg.Registry.Rooms = normalizeList(raw.Rooms)
	}
	if meta.IsDefined("room_capacity") {
		cfg.Registry.Capacity = raw.RoomCapacity
	}
	if meta.IsDefined("join_states") {
		cfg.Registry.JoinStates = normalizeList(raw.JoinStates)
	}
	if meta.IsDefined("tags") {
		cfg.Registry.Tags = normalizeList(raw.Tags)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if err := applySink(&cfg.Sink, raw.Sink, meta); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applySink(cfg *sink.Config, raw sinkConfig, meta toml.MetaData) error {
	if meta.IsDefined("sink", "kind") {
		cfg.Kind = strings.ToLower(strings.TrimSpace(raw.Kind))
	}
	if meta.IsDefined("sink", "url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("sink", "database") {
		cfg.Database = strings.TrimSpace(raw.Database)
	}
	if meta.IsDefined("sink", "username") {
		cfg.Username = raw.Username
	}
	if meta.IsDefined("sink", "password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("sink", "timeout") {
		d, err := parseDuration("sink.timeout", raw.Timeout)
		if err != nil {
			return err
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("sink", "redis_addr") {
		cfg.RedisAddr = strings.TrimSpace(raw.RedisAddr)
	}
	if meta.IsDefined("sink", "redis_db") {
		cfg.RedisDB = raw.RedisDB
	}
	if meta.IsDefined("sink", "redis_stream") {
		cfg.RedisStream = strings.TrimSpace(raw.RedisStream)
	}
	if meta.IsDefined("sink", "redis_maxlen") {
		cfg.RedisMaxLen = raw.RedisMaxLen
	}
	return nil
}

// Validate reports the first setting that cannot run.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if err := validateAddr("listen_addr", cfg.ListenAddr); err != nil {
		return err
	}
	if cfg.HTTPAddr != "" {
		if err := validateAddr("http_addr", cfg.HTTPAddr); err != nil {
			return err
		}
	}
	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read_timeout must be positive", ErrInvalidConfig)
	}
	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write_timeout must be positive", ErrInvalidConfig)
	}
	if cfg.Server.Limits.MaxFrameBytes <= 0 {
		return fmt.Errorf("%w: max_frame_bytes must be positive", ErrInvalidConfig)
	}
	if cfg.Registry.Capacity < 0 {
		return fmt.Errorf("%w: room_capacity must not be negative", ErrInvalidConfig)
	}

	switch cfg.Sink.Kind {
	case "", sink.KindNone:
	case sink.KindCouchDB:
		if cfg.Sink.URL == "" || cfg.Sink.Database == "" {
			return fmt.Errorf("%w: couchdb sink requires url and database", ErrInvalidConfig)
		}
	case sink.KindRedis:
		if cfg.Sink.RedisAddr == "" {
			return fmt.Errorf("%w: redis sink requires redis_addr", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sink kind %q", ErrInvalidConfig, cfg.Sink.Kind)
	}
	if cfg.Sink.Timeout <= 0 {
		return fmt.Errorf("%w: sink.timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

func validateAddr(key, addr string) error {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(addr)); err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidConfig, key, addr, err)
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
