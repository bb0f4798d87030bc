// Package db opens the account store selected in the configuration.
package db

import (
	"context"
	"fmt"

	"github.com/kelsos/chainbot/internal/config"
	"github.com/kelsos/chainbot/internal/store"
	"github.com/kelsos/chainbot/internal/store/badger"
	"github.com/kelsos/chainbot/internal/store/mongo"
	"github.com/kelsos/chainbot/internal/store/redis"
)

// New returns an open store of the given type. The caller owns it and must Close it.
func New(ctx context.Context, storeType, connection string) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	// assign through typed variables so a failed open never yields a non-nil interface
	switch storeType {
	case config.StoreRedis:
		var r *redis.Redis
		if r, err = redis.New(ctx, connection); err == nil {
			s = r
		}
	case config.StoreBadger:
		var b *badger.Badger
		if b, err = badger.New(connection); err == nil {
			s = b
		}
	case config.StoreMongo:
		var m *mongo.Mongo
		if m, err = mongo.New(ctx, connection); err == nil {
			s = m
		}
	default:
		return nil, fmt.Errorf("unknown store type %q", storeType)
	}

	if err != nil {
		return nil, err
	}
	return s, nil
}
