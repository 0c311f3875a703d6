package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/calehh/cfund-app/config"
	"github.com/calehh/cfund-app/custody"
	"github.com/calehh/cfund-app/engine"
	"github.com/calehh/cfund-app/gateway"
	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/types"
	"github.com/spf13/cobra"
)

type serveArguments struct {
	Home string
}

var serveArgs serveArguments

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the standalone engine with a custody ledger behind the HTTP gateway",
	Long: `serve runs a single-writer engine without consensus. Wallets of the
genesis accounts are funded in the custody ledger on first start.`,
	Args: cobra.ExactArgs(0),
	RunE: serveRun,
}

func init() {
	homeFlag(serveCmd, &serveArgs.Home)
}

// fundGenesis seeds an empty custody ledger from the genesis app state.
func fundGenesis(cfg *config.Config, ledger *custody.Ledger) (int, error) {
	wallets, err := ledger.Wallets()
	if err != nil {
		return 0, err
	}
	if len(wallets) > 0 {
		return 0, nil
	}
	genesis, err := types.ParseGenesisFile(cfg.GenesisFile())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	for _, a := range genesis.Accounts {
		if err = ledger.Deposit(a.Address, a.Balance); err != nil {
			return 0, err
		}
	}
	return len(genesis.Accounts), nil
}

func serveRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(serveArgs.Home)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	db, err := state.NewStateDB(cfg.App.StatePath(), logger)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	ledger, err := custody.OpenLedger(cfg.App.CustodyPath(), logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("open custody ledger: %w", err)
	}
	e, err := engine.New(db, ledger, logger, engine.WithChainId(cfg.App.ChainId))
	if err != nil {
		db.Close()
		ledger.Close()
		return err
	}
	defer e.Close()

	n, err := fundGenesis(cfg, ledger)
	if err != nil {
		return fmt.Errorf("fund genesis wallets: %w", err)
	}
	if n > 0 {
		logger.Info("funded genesis wallets", "count", n)
	}

	svc := gateway.NewService(cfg.App.GatewayAddr, &gateway.EngineBackend{Engine: e}, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start()
	}()

	select {
	case err = <-errCh:
		return err
	case <-signalCh():
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return svc.Stop(ctx)
}
