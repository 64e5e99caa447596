package rediscache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apppayment "github.com/ThierryFotabong/feeya/internal/application/payment"
)

const (
	eventLockPrefix = "feeya:webhook:"
	defaultLockTTL  = 30 * time.Second
)

// unlockScript deletes the key only while it still holds our token, so an expired lock
// taken over by another instance is left alone.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type EventLock struct {
	client redis.UniversalClient
	token  string
	ttl    time.Duration
}

func NewEventLock(client redis.UniversalClient, ttl time.Duration) *EventLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &EventLock{client: client, token: uuid.NewString(), ttl: ttl}
}

var _ apppayment.EventLock = (*EventLock)(nil)

func (l *EventLock) TryLock(ctx context.Context, eventID string) (bool, error) {
	return l.client.SetNX(ctx, eventLockPrefix+eventID, l.token, l.ttl).Result()
}

func (l *EventLock) Unlock(ctx context.Context, eventID string) error {
	return unlockScript.Run(ctx, l.client, []string{eventLockPrefix + eventID}, l.token).Err()
}
