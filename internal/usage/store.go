package usage

import (
	"context"
	"strconv"
	"time"

	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/redis/go-redis/v9"
)

const (
	usageTTL = 7 * 24 * time.Hour
	MaxHours = 7 * 24
)

// Recorder is what the HTTP layer needs to account for conversions.
type Recorder interface {
	Record(ctx context.Context, c Conversion) error
	GetHourly(ctx context.Context, hours int) ([]*Hourly, error)
}

type Store struct {
	redis *redis.Client
	now   func() time.Time
}

var _ Recorder = (*Store)(nil)

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient, now: time.Now}
}

func (s *Store) Record(ctx context.Context, c Conversion) error {
	now := s.now().UTC()
	key := RedisKey(c.Format, now.Format("2006-01-02"), now.Hour())

	pipe := s.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "requests", 1)
	if c.Failed {
		pipe.HIncrBy(ctx, key, "failures", 1)
	} else {
		pipe.HIncrBy(ctx, key, "successes", 1)
		pipe.HIncrBy(ctx, key, "bytes", int64(c.Bytes))
		pipe.HIncrBy(ctx, key, "total_latency_ms", c.Latency.Milliseconds())
		pipe.HIncrBy(ctx, key, "latency_count", 1)
	}
	pipe.Expire(ctx, key, usageTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetHourly returns non-empty rows for the last hours hours, newest first,
// one per format.
func (s *Store) GetHourly(ctx context.Context, hours int) ([]*Hourly, error) {
	if hours > MaxHours {
		hours = MaxHours
	}
	now := s.now().UTC()
	var rows []*Hourly

	for i := 0; i < hours; i++ {
		t := now.Add(-time.Duration(i) * time.Hour)
		date := t.Format("2006-01-02")

		for _, format := range synthesis.Formats() {
			data, err := s.redis.HGetAll(ctx, RedisKey(format, date, t.Hour())).Result()
			if err != nil {
				return nil, err
			}
			if len(data) == 0 {
				continue
			}

			h := &Hourly{Format: format, Date: date, Hour: t.Hour()}
			h.Requests, _ = strconv.ParseInt(data["requests"], 10, 64)
			h.Successes, _ = strconv.ParseInt(data["successes"], 10, 64)
			h.Failures, _ = strconv.ParseInt(data["failures"], 10, 64)
			h.Bytes, _ = strconv.ParseInt(data["bytes"], 10, 64)

			totalLatency, _ := strconv.ParseInt(data["total_latency_ms"], 10, 64)
			latencyCount, _ := strconv.ParseInt(data["latency_count"], 10, 64)
			if latencyCount > 0 {
				h.AvgLatencyMs = totalLatency / latencyCount
			}
			rows = append(rows, h)
		}
	}
	return rows, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
