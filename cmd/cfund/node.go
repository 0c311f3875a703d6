package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/cfund-app/app"
	"github.com/calehh/cfund-app/config"
	"github.com/calehh/cfund-app/gateway"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	rpclocal "github.com/cometbft/cometbft/rpc/client/local"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type nodeArguments struct {
	Home string
}

var nodeArgs nodeArguments

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a CometBFT node with the crowdfunding application and its HTTP gateway",
	Args:  cobra.ExactArgs(0),
	RunE:  nodeRun,
}

func init() {
	homeFlag(nodeCmd, &nodeArgs.Home)
}

func newLogger(cfg *config.Config) (cmtlog.Logger, error) {
	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err := cmtflags.ParseLogLevel(cfg.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	return logger, nil
}

func signalCh() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}

func nodeRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(nodeArgs.Home)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	pv := privval.LoadFilePV(
		cfg.PrivValidatorKeyFile(),
		cfg.PrivValidatorStateFile(),
	)
	nodeKey, err := p2p.LoadNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return fmt.Errorf("failed to load node's key: %w", err)
	}

	cfundApp, err := app.NewCFundApp(cfg.App, logger)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}

	node, err := nm.NewNode(
		cfg.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(cfundApp),
		nm.DefaultGenesisDocProviderFunc(cfg.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(cfg.Instrumentation),
		logger,
	)
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}

	cfundApp.Start(node.BlockStore())
	if err = node.Start(); err != nil {
		return fmt.Errorf("start comet node: %w", err)
	}

	svc := gateway.NewService(cfg.App.GatewayAddr, gateway.NewChainBackend(cfundApp.DB(), rpclocal.New(node)), logger)
	go func() {
		if err := svc.Start(); err != nil {
			logger.Error("gateway stopped", "err", err)
		}
	}()

	defer func() {
		log.Println("shut down...")
		done := make(chan struct{})
		go func() {
			defer close(done)
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := svc.Stop(ctx); err != nil {
				logger.Error("stop gateway", "err", err)
			}
			if err := node.Stop(); err != nil {
				logger.Error("stop comet node", "err", err)
			}
			node.Wait()
			cfundApp.Stop()
		}()
		timer := time.NewTimer(shutdownTimeout)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	<-signalCh()
	return nil
}
