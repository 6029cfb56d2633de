package config

import (
	"github.com/mezonai/credits/store"
)

// NodeConfig holds the listen addresses of a ledger node
type NodeConfig struct {
	JSONRPCAddr string `yaml:"jsonrpc_addr"`
	RESTAddr    string `yaml:"rest_addr"`
}

// KafkaConfig enables forwarding of terminal transaction events. An empty
// broker list disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// GenesisAccount is credited once, keyed by its address, on first start
type GenesisAccount struct {
	Address string `yaml:"address"`
	Amount  string `yaml:"amount"`
}

// LedgerConfig holds the configuration from ledger.yml
type LedgerConfig struct {
	Node    NodeConfig        `yaml:"node"`
	Store   store.StoreConfig `yaml:"store"`
	Kafka   KafkaConfig       `yaml:"kafka"`
	Genesis []GenesisAccount  `yaml:"genesis"`
}

// ConfigFile is the top-level structure for ledger.yml
type ConfigFile struct {
	Config LedgerConfig `yaml:"config"`
}

type EngineConfig struct {
	MaxRetries    int `ini:"max_retries"`
	BaseBackoffMs int `ini:"base_backoff_ms"`
	MaxBackoffMs  int `ini:"max_backoff_ms"`
	JitterMs      int `ini:"jitter_ms"`
}

type HistoryConfig struct {
	DefaultPageSize int `ini:"default_page_size"`
	MaxPageSize     int `ini:"max_page_size"`
}
