package config

import (
	"bytes"
	_ "embed"
	"os"
	"text/template"

	cmtconfig "github.com/cometbft/cometbft/config"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0o700

var appTemplate *template.Template

func init() {
	var err error
	if appTemplate, err = template.New("appConfigTemplate").Parse(defaultAppTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile writes the CometBFT sections followed by the [app] section.
func WriteConfigFile(configFilePath string, config *Config) error {
	cmtconfig.WriteConfigFile(configFilePath, config.Config)

	var buffer bytes.Buffer
	if err := appTemplate.Execute(&buffer, config.App); err != nil {
		return err
	}
	f, err := os.OpenFile(configFilePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buffer.Bytes())
	return err
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go.
//
//go:embed app.toml.tpl
var defaultAppTemplate string
