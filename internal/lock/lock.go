package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "assemblydigest:lock:"

// Redis is a SETNX lock that keeps scheduled jobs from running on two
// instances at once. Only the owner can release or extend it.
type Redis struct {
	client  *redis.Client
	ownerID string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client:  client,
		ownerID: newOwnerID(),
	}
}

// newOwnerID returns hostname:pid:random.
func newOwnerID() string {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)

	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes))
}

// Acquire reports false when another owner holds the lock.
func (l *Redis) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+name, l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release is a no-op when the lock is not held by this owner.
func (l *Redis) Release(ctx context.Context, name string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{keyPrefix + name}, l.ownerID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}

	return nil
}

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

func (l *Redis) Extend(ctx context.Context, name string, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{keyPrefix + name}, l.ownerID, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}

	if n == 0 {
		return fmt.Errorf("extend lock %s: not held by this instance", name)
	}

	return nil
}

func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Redis) OwnerID() string {
	return l.ownerID
}
