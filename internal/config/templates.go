package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders cfg in the file format Load reads.
func Template(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(toFile(cfg))
	if err != nil {
		return nil, fmt.Errorf("render bedctl config: %w", err)
	}
	return out, nil
}

// WriteTemplate writes the default configuration to path.
func WriteTemplate(path string, overwrite bool) error {
	data, err := Template(Default())
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func toFile(cfg Config) fileConfig {
	return fileConfig{
		ID:            cfg.ID,
		ListenAddr:    cfg.ListenAddr,
		HTTPAddr:      cfg.HTTPAddr,
		ReadTimeout:   cfg.Server.ReadTimeout.String(),
		WriteTimeout:  cfg.Server.WriteTimeout.String(),
		MaxFrameBytes: cfg.Server.Limits.MaxFrameBytes,
		Rooms:         nonNil(cfg.Registry.Rooms),
		RoomCapacity:  cfg.Registry.Capacity,
		JoinStates:    nonNil(cfg.Registry.JoinStates),
		Tags:          nonNil(cfg.Registry.Tags),
		CorsOrigins:   nonNil(cfg.CorsOrigins),
		Sink: sinkConfig{
			Kind:        cfg.Sink.Kind,
			URL:         cfg.Sink.URL,
			Database:    cfg.Sink.Database,
			Username:    cfg.Sink.Username,
			Password:    cfg.Sink.Password,
			Timeout:     cfg.Sink.Timeout.String(),
			RedisAddr:   cfg.Sink.RedisAddr,
			RedisDB:     cfg.Sink.RedisDB,
			RedisStream: cfg.Sink.RedisStream,
			RedisMaxLen: cfg.Sink.RedisMaxLen,
		},
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
