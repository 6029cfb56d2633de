package store

import (
	"fmt"

	"github.com/mezonai/credits/db"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/retry"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// MemoryStoreType uses LevelDB over in-memory storage
	MemoryStoreType StoreType = "memory"

	// RocksDBStoreType uses the RocksDB implementation
	RocksDBStoreType StoreType = "rocksdb"

	// RedisStoreType uses the Redis implementation
	RedisStoreType StoreType = "redis"

	// PostgresStoreType uses a PostgreSQL key/value table
	PostgresStoreType StoreType = "postgres"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `json:"type" yaml:"type"`

	// Directory is the database directory path (for file-based databases)
	Directory string `json:"directory" yaml:"directory"`

	// URL is the server address for redis and postgres
	URL string `json:"url" yaml:"url"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}

	switch sc.Type {
	case LevelDBStoreType, RocksDBStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty for %s", sc.Type)
		}
	case RedisStoreType, PostgresStoreType:
		if sc.URL == "" {
			return fmt.Errorf("url cannot be empty for %s", sc.Type)
		}
	case MemoryStoreType:
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
	return nil
}

// Stores bundles the stores sharing one provider
type Stores struct {
	Provider  db.ConditionalProvider
	TxManager *db.DBTxManager
	Accounts  *GenericAccountStore
	Txs       *GenericTxLog
}

// NewWriteSet starts an atomic write spanning accounts and transactions
func (s *Stores) NewWriteSet() *WriteSet {
	return NewWriteSet(s.TxManager)
}

// Close closes the shared provider once
func (s *Stores) Close() {
	if err := s.Provider.Close(); err != nil {
		logx.Error("STORE", "Failed to close db provider:", err.Error())
	}
}

// StoreFactory take responsibility to create store instances
type StoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() *StoreFactory {
	return &StoreFactory{}
}

// CreateStoreWithProvider creates store instances using the provider pattern
func (sf *StoreFactory) CreateStoreWithProvider(config *StoreConfig, policy retry.Policy) (*Stores, error) {
	provider, err := sf.CreateProvider(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	stores, err := NewStores(provider, policy)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	logx.Info("STORE", fmt.Sprintf("Opened %s store (last seq %d)", config.Type, stores.Txs.LastSeq()))
	return stores, nil
}

// NewStores builds the stores on an already opened provider
func NewStores(provider db.ConditionalProvider, policy retry.Policy) (*Stores, error) {
	accStore, err := NewGenericAccountStore(provider, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create account store: %w", err)
	}

	txLog, err := NewGenericTxLog(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction log: %w", err)
	}

	return &Stores{
		Provider:  provider,
		TxManager: db.NewDBTxManager(provider),
		Accounts:  accStore,
		Txs:       txLog,
	}, nil
}

// CreateProvider creates a database provider based on the configuration
func (sf *StoreFactory) CreateProvider(config *StoreConfig) (db.ConditionalProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch config.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(config.Directory)

	case MemoryStoreType:
		return db.NewMemLevelDBProvider()

	case RocksDBStoreType:
		return db.NewRocksDBProvider(config.Directory)

	case RedisStoreType:
		return db.NewRedisProvider(config.URL)

	case PostgresStoreType:
		return db.NewPostgresProvider(config.URL)

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// Global factory instance
var globalFactory = NewStoreFactory()

// CreateStore creates new store instances using the global factory
func CreateStore(config *StoreConfig, policy retry.Policy) (*Stores, error) {
	return globalFactory.CreateStoreWithProvider(config, policy)
}
