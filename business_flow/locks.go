package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/simple-crm/repository"
	"github.com/amirphl/simple-crm/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// acquireRoleLock serializes role changes of one account across instances.
// Without Redis it is a no-op and the single-role CHECK constraint remains the guard.
func acquireRoleLock(ctx context.Context, rc *redis.Client, prefix string, accountID uint) (func(), error) {
	if rc == nil {
		return func() {}, nil
	}

	lockKey := prefix + fmt.Sprintf(utils.AccountRoleLockKey, accountID)
	ok, err := rc.SetNX(ctx, lockKey, "1", utils.AccountRoleLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheNotAvailable, err)
	}
	if !ok {
		return nil, ErrRoleChangeInProgress
	}

	return func() {
		rc.Del(context.Background(), lockKey)
	}, nil
}

// withTransaction runs fn in a database transaction. A nil db runs fn directly,
// which is what in-memory repositories in unit tests rely on.
func withTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) error {
	if db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, db, fn)
}
