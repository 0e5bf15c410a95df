package connectors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go-erp/internal/config"
	"go-erp/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrUnknownSource is returned when a data-source name resolves to nothing.
var ErrUnknownSource = errors.New("unknown data source")

// DataSourceStore looks up registered data sources by name.
type DataSourceStore interface {
	FindByName(ctx context.Context, name string) (*DataSource, error)
}

type DataSourceStoreImpl struct {
	Collection *mongo.Collection
}

func NewDataSourceStore(db *database.MongodbDB) DataSourceStore {
	return &DataSourceStoreImpl{Collection: db.DB.Collection("data_sources")}
}

func (s *DataSourceStoreImpl) FindByName(ctx context.Context, name string) (*DataSource, error) {
	var ds DataSource
	err := s.Collection.FindOne(ctx, bson.M{"name": name, "is_active": true}).Decode(&ds)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

// Factory builds an unconnected connector for a data-source type.
type Factory func(sourceType string) (Connector, error)

func DefaultFactory(sourceType string) (Connector, error) {
	switch sourceType {
	case TypePostgreSQL, TypeMySQL:
		return NewExternalDBConnector(sourceType), nil
	case TypeMongoDB:
		return &MongoConnector{}, nil
	}
	return nil, fmt.Errorf("unsupported data source type %q", sourceType)
}

// Registry resolves data-source names to live connectors. The default name
// (and the empty name) map to the built-in business database; anything else
// is looked up in the store and connected once.
type Registry struct {
	defaultName string
	builtin     Connector
	store       DataSourceStore
	factory     Factory
	logger      *zap.Logger

	mu    sync.Mutex
	cache map[string]Connector
}

func NewRegistry(defaultName string, builtin Connector, store DataSourceStore, factory Factory, logger *zap.Logger) *Registry {
	if factory == nil {
		factory = DefaultFactory
	}
	return &Registry{
		defaultName: defaultName,
		builtin:     builtin,
		store:       store,
		factory:     factory,
		logger:      logger,
		cache:       map[string]Connector{},
	}
}

// NewDefaultRegistry wires the registry the API and CLI use: the application
// database is the built-in source.
func NewDefaultRegistry(cfg *config.Config, db *database.MongodbDB, store DataSourceStore, logger *zap.Logger) *Registry {
	return NewRegistry(cfg.DefaultDataSource, NewMongoConnector(db.DB), store, DefaultFactory, logger)
}

func (r *Registry) Resolve(ctx context.Context, name string) (Connector, error) {
	if name == "" || name == r.defaultName {
		if r.builtin == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, r.defaultName)
		}
		return r.builtin, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.cache[name]; ok {
		return conn, nil
	}
	if r.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	ds, err := r.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	conn, err := r.factory(ds.Type)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx, ds.Config); err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	r.cache[name] = conn
	r.logger.Info("Data source connected", zap.String("source", name), zap.String("type", ds.Type))
	return conn, nil
}

// Close disconnects every cached connector.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, conn := range r.cache {
		if err := conn.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		delete(r.cache, name)
	}
	return errors.Join(errs...)
}
