package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type redisRepo struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

func NewRedis(p Params) (CredentialStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     p.Config.Storage.Redis.Addr,
		Password: p.Config.Storage.Redis.Password,
		DB:       p.Config.Storage.Redis.DB,
	})

	r := &redisRepo{
		client: client,
		key:    p.Config.Storage.Key,
		log:    p.Log,
	}

	p.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.client.Ping(ctx).Err()
		},
		OnStop: func(_ context.Context) error {
			return r.client.Close()
		},
	})

	return r, nil
}

func (r *redisRepo) Load(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) || (err == nil && v == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *redisRepo) Save(ctx context.Context, credential string) error {
	return r.client.Set(ctx, r.key, credential, 0).Err()
}

func (r *redisRepo) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
