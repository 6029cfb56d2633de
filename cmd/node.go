package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mezonai/credits/api"
	"github.com/mezonai/credits/config"
	"github.com/mezonai/credits/events"
	"github.com/mezonai/credits/exception"
	"github.com/mezonai/credits/jsonrpc"
	"github.com/mezonai/credits/ledger"
	"github.com/mezonai/credits/logx"
	"github.com/mezonai/credits/monitoring"
	"github.com/mezonai/credits/retry"
	"github.com/mezonai/credits/security/validation"
	"github.com/mezonai/credits/service"
	"github.com/mezonai/credits/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	// Config paths
	ledgerConfigPath = "config/ledger.yml"
	engineConfigPath = "config/config.ini"
)

var (
	ledgerConfigFile string
	engineConfigFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ledger node",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runNode(ctx, ledgerConfigFile, engineConfigFile)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&ledgerConfigFile, "config", "c", ledgerConfigPath, "node config (yaml)")
	runCmd.Flags().StringVar(&engineConfigFile, "engine-config", engineConfigPath, "engine and history tuning (ini)")
}

// node is a fully wired ledger ready to serve
type node struct {
	cfg     *config.LedgerConfig
	stores  *store.Stores
	bus     *events.EventBus
	engine  *ledger.Engine
	ledger  *service.LedgerServiceImpl
	health  *service.HealthServiceImpl
	jsonrpc *jsonrpc.Server
	api     *api.APIServer
}

func buildNode(cfg *config.LedgerConfig, engineCfg *config.EngineConfig, historyCfg *config.HistoryConfig) (*node, error) {
	monitoring.InitMetrics()
	policy := engineCfg.Policy()

	stores, err := store.NewStoreFactory().CreateStoreWithProvider(&cfg.Store, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	bus := events.NewEventBus()
	router := events.NewEventRouter(bus)
	engine := ledger.NewEngine(stores.Accounts, stores.Txs, stores, router, policy)
	ledgerSvc := service.NewLedgerService(engine, stores.Accounts, stores.Txs, router, historyCfg.ServiceConfig())
	healthSvc := service.NewHealthService(stores.Provider, stores.Txs, string(cfg.Store.Type))

	cors, ok := jsonrpc.CORSFromEnv()
	if !ok {
		cors = jsonrpc.DefaultCORSConfig()
	}
	rpc := jsonrpc.NewServer(cfg.Node.JSONRPCAddr, ledgerSvc, healthSvc)
	rpc.SetCORSConfig(cors)

	return &node{
		cfg:     cfg,
		stores:  stores,
		bus:     bus,
		engine:  engine,
		ledger:  ledgerSvc,
		health:  healthSvc,
		jsonrpc: rpc,
		api:     api.NewAPIServer(cfg.Node.RESTAddr, ledgerSvc, healthSvc, cors),
	}, nil
}

func (n *node) applyGenesis(ctx context.Context) error {
	allocs := make([]ledger.GenesisAllocation, 0, len(n.cfg.Genesis))
	for _, g := range n.cfg.Genesis {
		amount, err := validation.ParseAmount(g.Amount)
		if err != nil {
			return fmt.Errorf("genesis %s: %w", g.Address, err)
		}
		allocs = append(allocs, ledger.GenesisAllocation{Address: g.Address, Amount: amount})
	}
	return exception.Run("genesis", func() error {
		return n.engine.ApplyGenesis(ctx, allocs)
	})
}

func (n *node) serve(ctx context.Context) error {
	var sink *events.KafkaSink
	if n.cfg.Kafka.Enabled() {
		var err error
		sink, err = events.NewKafkaSink(n.cfg.Kafka.Brokers, n.cfg.Kafka.Topic, nil)
		if err != nil {
			return err
		}
		defer sink.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.jsonrpc.Serve(ctx) })
	g.Go(func() error { return n.api.Serve(ctx) })
	if sink != nil {
		logx.Info("NODE", "Forwarding ledger events to kafka topic", n.cfg.Kafka.Topic)
		g.Go(func() error {
			return exception.Run("kafka-forwarder", func() error {
				return events.Forward(ctx, n.bus, sink, retry.DefaultPolicy())
			})
		})
	}
	return g.Wait()
}

func runNode(ctx context.Context, ledgerPath, enginePath string) error {
	cfg, err := config.LoadLedgerConfig(ledgerPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	engineCfg, err := config.LoadEngineConfig(enginePath)
	if err != nil {
		return fmt.Errorf("failed to load engine config: %w", err)
	}
	historyCfg, err := config.LoadHistoryConfig(enginePath)
	if err != nil {
		return fmt.Errorf("failed to load history config: %w", err)
	}

	n, err := buildNode(cfg, engineCfg, historyCfg)
	if err != nil {
		return err
	}
	defer n.stores.Close()

	if err := n.applyGenesis(ctx); err != nil {
		return err
	}
	logx.Info("NODE", fmt.Sprintf("Ledger node started: jsonrpc=%s rest=%s store=%s", cfg.Node.JSONRPCAddr, cfg.Node.RESTAddr, cfg.Store.Type))
	err = n.serve(ctx)
	logx.Info("NODE", "Ledger node stopped")
	return err
}
