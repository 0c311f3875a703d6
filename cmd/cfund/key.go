package main

import (
	"fmt"
	"os"

	"github.com/calehh/cfund-app/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

type keyArguments struct {
	Home      string
	Key       string
	Overwrite bool
}

var keyArgs keyArguments

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the signing key of an identity",
}

var keyNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a signing key",
	Args:  cobra.ExactArgs(0),
	RunE:  keyNewRun,
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the identity and public key of a signing key",
	Args:  cobra.ExactArgs(0),
	RunE:  keyShowRun,
}

func init() {
	for _, c := range []*cobra.Command{keyNewCmd, keyShowCmd} {
		homeFlag(c, &keyArgs.Home)
		keyFlag(c, &keyArgs.Key)
	}
	keyNewCmd.Flags().BoolVarP(&keyArgs.Overwrite, FlagOverwrite, "o", false, "replace an existing key file")
	keyCmd.AddCommand(keyNewCmd, keyShowCmd)
}

func (a *keyArguments) path() string {
	t := txArguments{Home: a.Home, Key: a.Key}
	return t.keyPath()
}

func keyNewRun(cmd *cobra.Command, args []string) error {
	path := keyArgs.path()
	if _, err := os.Stat(path); err == nil && !keyArgs.Overwrite {
		return fmt.Errorf("key file %s already exists, use --%s to replace it", path, FlagOverwrite)
	}
	k, err := crypto.GenKey()
	if err != nil {
		return err
	}
	if err = k.Save(path); err != nil {
		return err
	}
	fmt.Printf("address: %s\nfile: %s\n", k.Address().Hex(), path)
	return nil
}

func keyShowRun(cmd *cobra.Command, args []string) error {
	k, err := crypto.LoadKeyFile(keyArgs.path())
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\npubkey: %s\n", k.Address().Hex(), hexutil.Encode(k.PublicKey()))
	return nil
}
