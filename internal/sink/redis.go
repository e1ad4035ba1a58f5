package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// RedisStreamConfig addresses one Redis stream.
type RedisStreamConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen trims the stream approximately. Zero keeps everything.
	MaxLen int64
}

// RedisStream appends documents to a Redis stream with XADD.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStream(cfg RedisStreamConfig) (*RedisStream, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("sink: redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStreamWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

func NewRedisStreamWithClient(client *redis.Client, stream string, maxLen int64) *RedisStream {
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = "bedctl:logs"
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisStream) Submit(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"tipo": doc.Type,
			"data": string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

func (s *RedisStream) Close() error {
	return s.client.Close()
}
