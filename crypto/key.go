package crypto

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrKeyMismatch = errors.New("key file address does not match private key")

type keyJSON struct {
	Address common.Address `json:"address"`
	PrivKey hexutil.Bytes  `json:"priv_key"`
}

// Key is a secp256k1 signing identity kept in a JSON key file.
type Key struct {
	privateKey *ecdsa.PrivateKey
}

func GenKey() (*Key, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

func KeyFromHex(s string) (*Key, error) {
	priv, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

func LoadKeyFile(keyFilePath string) (*Key, error) {
	dat, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	var kj keyJSON
	if err = json.Unmarshal(dat, &kj); err != nil {
		return nil, fmt.Errorf("error reading key from %v: %w", keyFilePath, err)
	}
	priv, err := crypto.ToECDSA(kj.PrivKey)
	if err != nil {
		return nil, fmt.Errorf("error reading key from %v: %w", keyFilePath, err)
	}
	k := &Key{privateKey: priv}
	if kj.Address != (common.Address{}) && kj.Address != k.Address() {
		return nil, ErrKeyMismatch
	}
	return k, nil
}

// LoadOrGenKeyFile loads the key file, creating it with a fresh key when it
// does not exist.
func LoadOrGenKeyFile(keyFilePath string) (k *Key, created bool, err error) {
	if cmtos.FileExists(keyFilePath) {
		k, err = LoadKeyFile(keyFilePath)
		return
	}
	k, err = GenKey()
	if err != nil {
		return
	}
	err = k.Save(keyFilePath)
	created = err == nil
	return
}

func (k *Key) Save(keyFilePath string) error {
	if err := cmtos.EnsureDir(filepath.Dir(keyFilePath), 0o700); err != nil {
		return err
	}
	dat, err := json.MarshalIndent(keyJSON{
		Address: k.Address(),
		PrivKey: crypto.FromECDSA(k.privateKey),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(keyFilePath, dat, 0o600)
}

func (k *Key) PrivateKey() *ecdsa.PrivateKey {
	return k.privateKey
}

func (k *Key) PublicKey() []byte {
	return crypto.CompressPubkey(&k.privateKey.PublicKey)
}

func (k *Key) Address() common.Address {
	return crypto.PubkeyToAddress(k.privateKey.PublicKey)
}
