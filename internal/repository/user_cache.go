package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dmorenog/user-management-api/internal/domain"
)

// cachedUserRepository is a read-through cache over the Postgres
// repository. Account lookups happen on every authenticated request (the
// gate resolves the token subject against the directory), so GetByID and
// GetByUsername are cached with a short TTL. Writes invalidate both keys.
//
// This caches account records only; it is not a session store and holds
// no token state.
type cachedUserRepository struct {
	inner  UserRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserRepository decorates repo with a Redis cache. A nil client
// returns repo unchanged.
func NewCachedUserRepository(repo UserRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) UserRepository {
	if client == nil {
		return repo
	}
	return &cachedUserRepository{inner: repo, client: client, ttl: ttl, logger: logger}
}

func idKey(id string) string             { return "user:id:" + id }
func usernameKey(username string) string { return "user:name:" + username }

func (r *cachedUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if user := r.lookup(ctx, idKey(id)); user != nil {
		return user, nil
	}
	user, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, user)
	return user, nil
}

func (r *cachedUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if user := r.lookup(ctx, usernameKey(username)); user != nil {
		return user, nil
	}
	user, err := r.inner.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	r.store(ctx, user)
	return user, nil
}

func (r *cachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.inner.Create(ctx, user)
}

func (r *cachedUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := r.inner.Update(ctx, user); err != nil {
		return err
	}
	r.invalidate(ctx, user.ID, user.Username)
	return nil
}

func (r *cachedUserRepository) Delete(ctx context.Context, id string) error {
	username := ""
	if user, err := r.inner.GetByID(ctx, id); err == nil {
		username = user.Username
	}
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id, username)
	return nil
}

func (r *cachedUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.inner.GetByEmail(ctx, email)
}

func (r *cachedUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.inner.ExistsByUsername(ctx, username)
}

func (r *cachedUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.inner.ExistsByEmail(ctx, email)
}

func (r *cachedUserRepository) ExistsByDNI(ctx context.Context, dni string) (bool, error) {
	return r.inner.ExistsByDNI(ctx, dni)
}

func (r *cachedUserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, int64, error) {
	return r.inner.List(ctx, limit, offset)
}

func (r *cachedUserRepository) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	return r.inner.CountByRole(ctx, role)
}

// lookup returns a cached user, or nil on miss or any cache failure. The
// cache is an optimization; failures fall back to Postgres.
func (r *cachedUserRepository) lookup(ctx context.Context, key string) *domain.User {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("user cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	var user domain.User
	if err := json.Unmarshal(payload, &user); err != nil {
		r.logger.Warn("user cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &user
}

func (r *cachedUserRepository) store(ctx context.Context, user *domain.User) {
	payload, err := json.Marshal(user)
	if err != nil {
		return
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, idKey(user.ID), payload, r.ttl)
	pipe.Set(ctx, usernameKey(user.Username), payload, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("user cache write failed", zap.String("username", user.Username), zap.Error(err))
	}
}

func (r *cachedUserRepository) invalidate(ctx context.Context, id, username string) {
	keys := []string{idKey(id)}
	if username != "" {
		keys = append(keys, usernameKey(username))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("user cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}
