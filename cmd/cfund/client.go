package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/calehh/cfund-app/config"
	"github.com/calehh/cfund-app/crypto"
	"github.com/calehh/cfund-app/gateway"
	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// txArguments are shared by every command that signs a transaction.
type txArguments struct {
	Url  string
	Home string
	Key  string
}

func txFlags(cmd *cobra.Command, args *txArguments) {
	urlFlag(cmd, &args.Url)
	homeFlag(cmd, &args.Home)
	keyFlag(cmd, &args.Key)
}

func (a *txArguments) keyPath() string {
	if a.Key != "" {
		return a.Key
	}
	return filepath.Join(config.ExpandHome(a.Home), config.DefaultKeyFile)
}

func newClient(url string) (*http.HTTP, error) {
	cli, err := http.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	return cli, nil
}

// query runs an ABCI query and decodes the JSON response into out.
func query(ctx context.Context, cli *http.HTTP, path string, data []byte, out any) error {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	if res.Response.Code != types.CodeOK {
		r := gateway.TxResult{Code: res.Response.Code, Log: res.Response.Log}
		return r.Err()
	}
	return json.Unmarshal(res.Response.Value, out)
}

func queryAccount(ctx context.Context, cli *http.HTTP, addr common.Address) (*state.Account, error) {
	var a state.Account
	if err := query(ctx, cli, "/accounts/", addr.Bytes(), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// sendTx signs payload with the next nonce of the key and waits for it to be
// committed.
func sendTx(args *txArguments, payload any) (*gateway.TxResult, error) {
	key, err := crypto.LoadKeyFile(args.keyPath())
	if err != nil {
		return nil, err
	}
	cli, err := newClient(args.Url)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain genesis: %w", err)
	}
	act, err := queryAccount(ctx, cli, key.Address())
	if err != nil {
		return nil, err
	}
	btx, err := tx.New(act.Nonce, payload)
	if err != nil {
		return nil, err
	}
	if err = btx.Sign(key.PrivateKey(), gres.Genesis.ChainID); err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	res, err := gateway.NewChainBackend(nil, cli).Submit(ctx, btx)
	if err != nil {
		return nil, fmt.Errorf("broadcast tx: %w", err)
	}
	if err = printJSON(res); err != nil {
		return nil, err
	}
	return res, res.Err()
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseAddressArg(s string) (common.Address, error) {
	addr, err := tx.ParseIdentity(s)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}
