// Package remote mirrors local records into a MongoDB document store.
package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"taskquest/config"
	"taskquest/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultTimeout = 10 * time.Second

type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	logger  *slog.Logger
}

// Connect dials the cluster, pings it and ensures indexes.
func Connect(ctx context.Context, cfg config.DatabaseConfig, timeout time.Duration, logger *slog.Logger) (*Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("remote store: empty URI")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetRetryWrites(cfg.RetryWrites).
		SetPoolMonitor(utils.MongoPoolMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{
		client:  client,
		db:      client.Database(cfg.DatabaseName),
		timeout: timeout,
		logger:  logger,
	}
	if err := SetupIndexes(ctx, s.db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("remote store connected", slog.String("database", cfg.DatabaseName))
	return s, nil
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}
