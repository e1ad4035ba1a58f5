package sink

import (
	"fmt"
	"strings"
	"time"
)

// Backend kinds accepted by Open.
const (
	KindNone    = "none"
	KindCouchDB = "couchdb"
	KindRedis   = "redis"
)

// Config selects and addresses one backend.
type Config struct {
	Kind     string
	URL      string
	Database string
	Username string
	Password string
	Timeout  time.Duration

	RedisAddr   string
	RedisDB     int
	RedisStream string
	RedisMaxLen int64
}

func DefaultConfig() Config {
	return Config{
		Kind:        KindNone,
		Database:    "saude_esp_logs",
		Timeout:     5 * time.Second,
		RedisStream: "bedctl:logs",
	}
}

// Open builds the configured backend wrapped with metrics. The returned close
// func releases backend connections and is never nil.
func Open(cfg Config) (Sink, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindNone:
		return Instrument(KindNone, Discard{}), noop, nil
	case KindCouchDB:
		db, err := NewCouchDB(CouchDBConfig{
			URL:      cfg.URL,
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, noop, err
		}
		return Instrument(KindCouchDB, db), noop, nil
	case KindRedis:
		rs, err := NewRedisStream(RedisStreamConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			MaxLen:   cfg.RedisMaxLen,
		})
		if err != nil {
			return nil, noop, err
		}
		return Instrument(KindRedis, rs), rs.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrNoBackend, cfg.Kind)
	}
}
