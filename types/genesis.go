package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for a CometBFT blockchain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// GenesisAccount funds an identity at chain start. Contributions are paid
// from these balances.
type GenesisAccount struct {
	Address common.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

type GenesisAppState struct {
	Accounts []GenesisAccount `json:"accounts"`
}

func ParseGenesisAppState(raw []byte) (*GenesisAppState, error) {
	st := &GenesisAppState{}
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("invalid app_state: %w", err)
	}
	seen := make(map[common.Address]bool, len(st.Accounts))
	for _, a := range st.Accounts {
		if a.Address == (common.Address{}) {
			return nil, errors.New("genesis account with zero address")
		}
		if seen[a.Address] {
			return nil, fmt.Errorf("duplicate genesis account %v", a.Address.Hex())
		}
		seen[a.Address] = true
	}
	return st, nil
}

// ParseGenesisFile reads the app state of a genesis file written by
// ExportGenesisFile.
func ParseGenesisFile(file string) (*GenesisAppState, error) {
	dat, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var doc GenesisDoc
	if err = cmtjson.Unmarshal(dat, &doc); err != nil {
		return nil, fmt.Errorf("invalid genesis file %s: %w", file, err)
	}
	return ParseGenesisAppState(doc.AppState)
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	if _, err := ParseGenesisAppState(ag.AppState); err != nil {
		return err
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const CFundModuleName = "cfund"
const DefaultPower = 1000
