package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.HistoryFeed     = (*RedisFeed)(nil)
	_ domain.HistoryRecorder = (*RedisFeed)(nil)
)

// Redis keys.
const (
	defaultKey     = "interactions"
	updatesSuffix  = ":updates"
	defaultMaxKept = 1000
)

// RedisConfig holds the connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisOption configures the RedisFeed.
type RedisOption func(*RedisFeed)

// WithKey sets the sorted-set key; updates are published on key+":updates".
func WithKey(key string) RedisOption {
	return func(f *RedisFeed) { f.key = key }
}

// WithMaxKept caps how many interactions stay in the set.
func WithMaxKept(n int64) RedisOption {
	return func(f *RedisFeed) { f.maxKept = n }
}

// RedisFeed stores interactions in a sorted set scored by timestamp and
// announces each write on a pub/sub channel so subscribers can reload.
type RedisFeed struct {
	rdb     *redis.Client
	log     *logger.Logger
	key     string
	maxKept int64
}

// record is the stored JSON shape. The timestamp mirrors the
// {seconds} object the history collaborator exposes.
type record struct {
	ID           string `json:"id"`
	UserInput    string `json:"user_input"`
	ResponseText string `json:"response_text"`
	Timestamp    struct {
		Seconds int64 `json:"seconds"`
		Nanos   int32 `json:"nanos,omitempty"`
	} `json:"timestamp"`
}

// NewRedisFeed connects to Redis and checks the connection.
func NewRedisFeed(cfg RedisConfig, log *logger.Logger, opts ...RedisOption) (*RedisFeed, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("history: redis ping: %w", err)
	}

	f := &RedisFeed{rdb: rdb, log: log, key: defaultKey, maxKept: defaultMaxKept}
	for _, o := range opts {
		o(f)
	}
	log.Info("history: connected to redis at %s (key=%s)", cfg.Addr, f.key)
	return f, nil
}

func (f *RedisFeed) updates() string { return f.key + updatesSuffix }

// Record stores an interaction, trims the set, and announces the write.
func (f *RedisFeed) Record(ctx context.Context, in domain.Interaction) error {
	var r record
	r.ID = in.ID
	r.UserInput = in.UserInput
	r.ResponseText = in.ResponseText
	r.Timestamp.Seconds = in.Timestamp.Unix()
	r.Timestamp.Nanos = int32(in.Timestamp.Nanosecond())

	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}

	_, err = f.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, f.key, redis.Z{Score: float64(in.Timestamp.UnixNano()), Member: b})
		pipe.ZRemRangeByRank(ctx, f.key, 0, -(f.maxKept + 1))
		pipe.Publish(ctx, f.updates(), in.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	f.log.Debug("history: recorded %s", in.ID)
	return nil
}

// Snapshot loads the newest limit interactions.
func (f *RedisFeed) Snapshot(ctx context.Context, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	raw, err := f.rdb.ZRevRange(ctx, f.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}

	out := make([]domain.Interaction, 0, len(raw))
	for _, s := range raw {
		var r record
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			f.log.Warn("history: skipping malformed entry: %v", err)
			continue
		}
		out = append(out, domain.Interaction{
			ID:           r.ID,
			UserInput:    r.UserInput,
			ResponseText: r.ResponseText,
			Timestamp:    time.Unix(r.Timestamp.Seconds, int64(r.Timestamp.Nanos)),
		})
	}
	return out, nil
}

// Subscribe delivers a snapshot right away and another after every
// announced write. Load failures go to the error channel; the
// subscription keeps running. Both channels close when ctx ends.
func (f *RedisFeed) Subscribe(ctx context.Context, limit int) (<-chan []domain.Interaction, <-chan error, error) {
	ps := f.rdb.Subscribe(ctx, f.updates())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("history: subscribe: %w", err)
	}

	snaps := make(chan []domain.Interaction, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(snaps)
		defer ps.Close()

		reload := func() {
			snap, err := f.Snapshot(ctx, limit)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case errs <- err:
				default:
					f.log.Warn("history: dropped feed error: %v", err)
				}
				return
			}
			offer(snaps, snap)
		}

		reload()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				reload()
			}
		}
	}()
	return snaps, errs, nil
}

// Close releases the connection pool.
func (f *RedisFeed) Close() error {
	return f.rdb.Close()
}
