package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes reservation attempts per variant. Whoever wins the SetNX
// owns the variant for the duration of the write; everyone else fails fast
// and retries. The TTL guards against a crashed holder wedging the variant.
type Redis struct {
	Client  *redis.Client
	LockTTL time.Duration
}

func NewRedis(client *redis.Client, lockTTL time.Duration) *Redis {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &Redis{Client: client, LockTTL: lockTTL}
}

func variantKey(eventID, productID, size string) string {
	return fmt.Sprintf("variant_lock:%s:%s:%s", eventID, productID, size)
}

// LockVariant acquires the lock for one (event, product, size). The token
// identifies the owner so an unrelated session cannot release it.
func (r *Redis) LockVariant(eventID, productID, size, token string) (bool, error) {
	key := variantKey(eventID, productID, size)
	return r.Client.SetNX(context.Background(), key, token, r.LockTTL).Result()
}

// UnlockVariant releases the lock only if the token still owns it.
func (r *Redis) UnlockVariant(eventID, productID, size, token string) error {
	ctx := context.Background()
	key := variantKey(eventID, productID, size)

	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired or released
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// IsVariantLocked checks the lock without acquiring it.
func (r *Redis) IsVariantLocked(eventID, productID, size string) (bool, error) {
	key := variantKey(eventID, productID, size)
	_, err := r.Client.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
