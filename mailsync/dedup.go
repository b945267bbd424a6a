package mailsync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DedupGuard is a best-effort cross-account claim on a message hash, backed by
// Redis. It narrows the check-then-insert window on the emails table; the
// store query remains the authority. Errors are returned so the caller can
// fail open.
type DedupGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDedupGuard(rdb *redis.Client, ttl time.Duration) *DedupGuard {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &DedupGuard{rdb: rdb, ttl: ttl}
}

// OwnedElsewhere claims hash for accountID and reports whether a different
// account already holds the claim.
func (g *DedupGuard) OwnedElsewhere(ctx context.Context, hash string, accountID uuid.UUID) (bool, error) {
	key := "dealscout:msghash:" + hash
	set, err := g.rdb.SetNX(ctx, key, accountID.String(), g.ttl).Result()
	if err != nil {
		return false, err
	}
	if set {
		return false, nil
	}
	owner, err := g.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner != accountID.String(), nil
}
