package discovery

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

// RedisPointerStore is the shared pointer cell for multi-instance
// deployments. Compare-and-swap is implemented with a WATCH transaction so a
// concurrent writer aborts the commit instead of being silently overwritten.
type RedisPointerStore struct {
	client *redis.Client
	key    string
}

// NewRedisPointerStore uses the given key as the well-known pointer slot.
func NewRedisPointerStore(client *redis.Client, key string) *RedisPointerStore {
	return &RedisPointerStore{client: client, key: key}
}

func (s *RedisPointerStore) Current(ctx context.Context) (domain.Address, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "reading registry pointer")
	}
	return domain.Address(val), nil
}

func (s *RedisPointerStore) CompareAndSwap(ctx context.Context, old, next domain.Address) error {
	txn := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, s.key).Result()
		if errors.Is(err, redis.Nil) {
			cur = ""
		} else if err != nil {
			return err
		}
		if domain.Address(cur) != old {
			return dErrors.Newf(dErrors.CodePointerConflict,
				"registry pointer moved: expected %s, found %s", orUnset(old), orUnset(domain.Address(cur)))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, next.String(), 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, s.key)
	if errors.Is(err, redis.TxFailedErr) {
		// The watched key changed between read and commit.
		return dErrors.Wrap(err, dErrors.CodePointerConflict, "registry pointer moved during swap")
	}
	if err != nil && !dErrors.HasCode(err, dErrors.CodePointerConflict) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "swapping registry pointer")
	}
	return err
}
