package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/calehh/cfund-app/config"
	"github.com/calehh/cfund-app/crypto"
	"github.com/calehh/cfund-app/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"
)

const DefaultOwnerBalance = 1_000_000_000

type printInfo struct {
	ChainID    string          `json:"chain_id"`
	NodeID     string          `json:"node_id"`
	Owner      string          `json:"owner"`
	AppMessage json.RawMessage `json:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

type initArguments struct {
	Home      string
	ChainID   string
	Overwrite bool
	Balance   uint64
}

var initArgs initArguments

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize validator, p2p, genesis, owner key and application configuration files",
	Args:  cobra.ExactArgs(0),
	RunE:  initRun,
}

func init() {
	homeFlag(initCmd, &initArgs.Home)
	initCmd.Flags().BoolVarP(&initArgs.Overwrite, FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().StringVar(&initArgs.ChainID, FlagChainID, config.DefaultChainId, "genesis file chain-id")
	initCmd.Flags().Uint64Var(&initArgs.Balance, "balance", DefaultOwnerBalance, "genesis balance of the owner key")
}

func initRun(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig(initArgs.Home)
	cfg.App.ChainId = initArgs.ChainID

	nodeID, pk, err := config.InitializeNodeValidatorFiles(cfg, nil)
	if err != nil {
		return err
	}
	owner, created, err := crypto.LoadOrGenKeyFile(cfg.App.KeyPath())
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(os.Stderr, "generated owner key %s\n", cfg.App.KeyPath())
	}

	genFile := cfg.GenesisFile()
	if cmtos.FileExists(genFile) && !initArgs.Overwrite {
		return fmt.Errorf("genesis file %s already exists, use --%s to replace it", genFile, FlagOverwrite)
	}
	appState, err := json.Marshal(&types.GenesisAppState{
		Accounts: []types.GenesisAccount{{Address: owner.Address(), Balance: initArgs.Balance}},
	})
	if err != nil {
		return err
	}
	genesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         initArgs.ChainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators: []types.GenesisValidator{
			{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower},
		},
		AppState: appState,
	}
	if err = types.ExportGenesisFile(genesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	if err = config.WriteConfigFile(config.ConfigFile(cfg.App.Home), cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return displayInfo(printInfo{
		ChainID:    initArgs.ChainID,
		NodeID:     nodeID,
		Owner:      owner.Address().Hex(),
		AppMessage: appState,
	})
}
