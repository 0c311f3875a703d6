package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/spf13/viper"
)

const (
	DefaultHomeDir     = "$HOME/.cfund"
	DefaultGatewayAddr = "127.0.0.1:8080"
	DefaultCustodyDir  = "data/custody"
	DefaultKeyFile     = "config/owner_key.json"
	DefaultChainId     = "cfund-local"
)

type AppConfig struct {
	Home        string `mapstructure:"-"`
	GatewayAddr string `mapstructure:"gateway_addr"`
	CustodyDir  string `mapstructure:"custody_dir"`
	KeyFile     string `mapstructure:"key_file"`
	ChainId     string `mapstructure:"chain_id"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:        home,
		GatewayAddr: DefaultGatewayAddr,
		CustodyDir:  DefaultCustodyDir,
		KeyFile:     DefaultKeyFile,
		ChainId:     DefaultChainId,
	}
}

func (c *AppConfig) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Home, path)
}

// CustodyPath is the directory of the standalone custody ledger.
func (c *AppConfig) CustodyPath() string {
	return c.resolve(c.CustodyDir)
}

func (c *AppConfig) KeyPath() string {
	return c.resolve(c.KeyFile)
}

func (c *AppConfig) StatePath() string {
	return filepath.Join(c.Home, "data")
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func ExpandHome(home string) string {
	if len(home) == 0 {
		home = DefaultHomeDir
	}
	return os.ExpandEnv(home)
}

func DefaultConfig(home string) *Config {
	home = ExpandHome(home)
	cfg := &Config{
		DefaultCometConfig(),
		DefaultAppConfig(home),
	}
	cfg.SetRoot(home)
	_ = os.MkdirAll(filepath.Join(home, "config"), DefaultDirPerm)
	return cfg
}

func ConfigFile(home string) string {
	return filepath.Join(home, "config", "config.toml")
}

// LoadConfig reads $home/config/config.toml over the defaults.
func LoadConfig(home string) (*Config, error) {
	home = ExpandHome(home)
	cfg := &Config{
		Config: DefaultCometConfig(),
		App:    DefaultAppConfig(home),
	}
	cfg.SetRoot(home)

	v := viper.New()
	v.SetConfigFile(ConfigFile(home))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SetRoot(home)
	cfg.App.Home = home
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	if cfg.App.GatewayAddr == "" {
		return nil, fmt.Errorf("invalid configuration data: empty app.gateway_addr")
	}
	return cfg, nil
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
