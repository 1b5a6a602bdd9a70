package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/quotedesk/quotedesk/internal/config"
)

const keyPublicIP = "public:ip:%s"

// PublicLimiter throttles the unauthenticated surface (lead form, quote
// token, portal login) per client IP. A nil limiter means rate limiting is
// disabled; callers must treat nil as allow-all.
type PublicLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewPublicLimiter(cfg config.Config) (*PublicLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PublicRate <= 0 || limitCfg.PublicBurst <= 0 {
		return nil, errors.New("public rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PublicLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.PublicRate,
		burst:   limitCfg.PublicBurst,
	}, nil
}

func (l *PublicLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PublicLimiter) AllowIP(ctx context.Context, ip string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPublicIP, strings.TrimSpace(ip)), l.rate, l.burst)
}
