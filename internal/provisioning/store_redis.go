package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

const codeKeyPrefix = "regcode:"

// CodeRedisStore keeps registration codes in Redis so multiple instances
// share one pool of unconsumed codes. Consume is GETDEL, which makes the
// single-use guarantee atomic across instances.
type CodeRedisStore struct {
	client redis.Cmdable
}

func NewCodeRedis(client redis.Cmdable) *CodeRedisStore {
	return &CodeRedisStore{client: client}
}

func (s *CodeRedisStore) Add(ctx context.Context, code RegistrationCode) error {
	ok, err := s.client.SetNX(ctx, codeKeyPrefix+code.Code, string(code.Role), 0).Result()
	if err != nil {
		return fmt.Errorf("store registration code: %w", err)
	}
	if !ok {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *CodeRedisStore) Consume(ctx context.Context, code string) (id.Role, error) {
	val, err := s.client.GetDel(ctx, codeKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume registration code: %w", err)
	}
	role, err := id.ParseRole(val)
	if err != nil {
		return "", fmt.Errorf("stored registration code carries unknown role %q", val)
	}
	return role, nil
}
