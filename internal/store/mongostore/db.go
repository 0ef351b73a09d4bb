// Package mongostore implements the persistence protocol over MongoDB, the
// schemaless document substrate. One request session maps to one mongo
// session; when the deployment is a replica set the session carries a
// multi-document transaction, otherwise writes apply immediately and
// Commit/Rollback are no-ops.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/skrafl/server/internal/config"
	"github.com/skrafl/server/internal/store"
)

// Store wraps the shared mongo client plus the optional redis read cache.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	cache  *cache
	log    *zap.Logger

	// transactions require a replica set; detected at connect time
	txnCapable bool
}

func NewStore(ctx context.Context, cfg config.DatabaseConfig, redisCfg config.RedisConfig, log *zap.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetMaxPoolSize(uint64(cfg.MaxOpenConns)).
		SetMinPoolSize(uint64(cfg.MaxIdleConns)).
		SetMaxConnIdleTime(cfg.ConnMaxLifetime)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{
		client:     client,
		db:         client.Database(cfg.Name),
		log:        log,
		txnCapable: detectReplicaSet(pingCtx, client),
	}
	if !s.txnCapable {
		log.Warn("mongo deployment is standalone, sessions run without transactions")
	}

	if redisCfg.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unavailable, read cache disabled", zap.Error(err))
		} else {
			s.cache = newCache(rdb, log)
		}
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewSession starts the request-scoped mongo session.
func (s *Store) NewSession(ctx context.Context) (store.Backend, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	b := &Backend{store: s, sess: sess, log: s.log}
	if s.txnCapable {
		if err := sess.StartTransaction(); err != nil {
			sess.EndSession(ctx)
			return nil, fmt.Errorf("start transaction: %w", err)
		}
		b.inTxn = true
	}
	return b, nil
}

func (s *Store) Close() {
	if s.cache != nil {
		s.cache.close()
	}
	if err := s.client.Disconnect(context.Background()); err != nil {
		s.log.Error("mongo disconnect failed", zap.Error(err))
	}
}

func detectReplicaSet(ctx context.Context, client *mongo.Client) bool {
	var result struct {
		SetName string `bson:"setName"`
	}
	res := client.Database("admin").RunCommand(ctx, map[string]any{"hello": 1})
	if err := res.Decode(&result); err != nil {
		return false
	}
	return result.SetName != ""
}
