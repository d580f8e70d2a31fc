package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the badge store connection.
type RedisOptions struct {
	Addr        string
	User        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Timeout     time.Duration
}

// RedisBadges keeps one integer counter per badge.
type RedisBadges struct {
	client *redis.Client
}

// NewRedisBadges connects to Redis. The connection is lazy; use Ping to check it.
func NewRedisBadges(opts RedisOptions) *RedisBadges {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})
	return &RedisBadges{client: client}
}

func badgeKey(b Badge) string { return "badge:" + string(b) }

func (r *RedisBadges) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("notify: redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisBadges) Increment(ctx context.Context, badge Badge) error {
	if err := r.client.Incr(ctx, badgeKey(badge)).Err(); err != nil {
		return fmt.Errorf("notify: failed to increment %s: %w", badge, err)
	}
	return nil
}

func (r *RedisBadges) Counts(ctx context.Context) (Counts, error) {
	vals, err := r.client.MGet(ctx, badgeKey(BadgeContacts), badgeKey(BadgeSamples)).Result()
	if err != nil {
		return Counts{}, fmt.Errorf("notify: failed to read badges: %w", err)
	}
	contacts, err := toCount(vals[0])
	if err != nil {
		return Counts{}, err
	}
	samples, err := toCount(vals[1])
	if err != nil {
		return Counts{}, err
	}
	return Counts{Contacts: contacts, Samples: samples}, nil
}

func (r *RedisBadges) Ack(ctx context.Context, badge Badge) error {
	if err := r.client.Set(ctx, badgeKey(badge), 0, 0).Err(); err != nil {
		return fmt.Errorf("notify: failed to reset %s: %w", badge, err)
	}
	return nil
}

func (r *RedisBadges) Close() error {
	return r.client.Close()
}

// toCount converts an MGET slot; a missing key reads as zero.
func toCount(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("notify: unexpected badge value type")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("notify: badge value %q is not a number: %w", s, err)
	}
	return n, nil
}
