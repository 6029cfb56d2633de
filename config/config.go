package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/retry"
	"github.com/mezonai/credits/security/validation"
	"github.com/mezonai/credits/service"
	"github.com/mezonai/credits/store"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultJSONRPCAddr = ":8545"
	DefaultRESTAddr    = ":8080"
	DefaultKafkaTopic  = "credits.transactions"
)

// LoadLedgerConfig reads and parses the ledger.yml file
func LoadLedgerConfig(path string) (*LedgerConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	cfg := &cfgFile.Config
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded %s: store=%s genesis=%d kafka=%t", path, cfg.Store.Type, len(cfg.Genesis), cfg.Kafka.Enabled()))
	return cfg, nil
}

func (c *LedgerConfig) applyDefaults() {
	if c.Node.JSONRPCAddr == "" {
		c.Node.JSONRPCAddr = DefaultJSONRPCAddr
	}
	if c.Node.RESTAddr == "" {
		c.Node.RESTAddr = DefaultRESTAddr
	}
	if c.Store.Type == "" {
		c.Store.Type = store.MemoryStoreType
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
}

// Validate checks the store section and every genesis entry
func (c *LedgerConfig) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Genesis))
	for i, g := range c.Genesis {
		if err := validation.ValidateAddress(validation.AddressField, g.Address); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if _, err := validation.ParseAmount(g.Amount); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if _, dup := seen[g.Address]; dup {
			return fmt.Errorf("genesis[%d]: duplicate address %s", i, g.Address)
		}
		seen[g.Address] = struct{}{}
	}
	return nil
}

// LoadEngineConfig reads the [engine] section. Missing keys keep the
// defaults of retry.DefaultPolicy.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	def := retry.DefaultPolicy()
	engineCfg := &EngineConfig{
		MaxRetries:    def.MaxAttempts,
		BaseBackoffMs: int(def.BaseDelay / time.Millisecond),
		MaxBackoffMs:  int(def.MaxDelay / time.Millisecond),
		JitterMs:      int(def.Jitter / time.Millisecond),
	}
	if err := cfg.Section("engine").MapTo(engineCfg); err != nil {
		return nil, err
	}
	if engineCfg.MaxRetries <= 0 {
		return nil, fmt.Errorf("engine.max_retries must be positive, got %d", engineCfg.MaxRetries)
	}
	if engineCfg.MaxBackoffMs < engineCfg.BaseBackoffMs {
		return nil, fmt.Errorf("engine.max_backoff_ms (%d) is below base_backoff_ms (%d)", engineCfg.MaxBackoffMs, engineCfg.BaseBackoffMs)
	}
	return engineCfg, nil
}

// Policy turns the engine section into a retry policy
func (e *EngineConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = e.MaxRetries
	p.BaseDelay = time.Duration(e.BaseBackoffMs) * time.Millisecond
	p.MaxDelay = time.Duration(e.MaxBackoffMs) * time.Millisecond
	p.Jitter = time.Duration(e.JitterMs) * time.Millisecond
	return p
}

func LoadHistoryConfig(path string) (*HistoryConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	historyCfg := &HistoryConfig{
		DefaultPageSize: store.DefaultPageSize,
		MaxPageSize:     store.MaxPageSize,
	}
	if err := cfg.Section("history").MapTo(historyCfg); err != nil {
		return nil, err
	}
	if historyCfg.MaxPageSize <= 0 || historyCfg.MaxPageSize > store.MaxPageSize {
		return nil, fmt.Errorf("history.max_page_size must be in 1..%d, got %d", store.MaxPageSize, historyCfg.MaxPageSize)
	}
	if historyCfg.DefaultPageSize <= 0 || historyCfg.DefaultPageSize > historyCfg.MaxPageSize {
		return nil, fmt.Errorf("history.default_page_size must be in 1..%d, got %d", historyCfg.MaxPageSize, historyCfg.DefaultPageSize)
	}
	return historyCfg, nil
}

func (h *HistoryConfig) ServiceConfig() service.HistoryConfig {
	return service.HistoryConfig{DefaultPageSize: h.DefaultPageSize, MaxPageSize: h.MaxPageSize}
}
