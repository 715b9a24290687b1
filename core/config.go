package core

import (
	"os"

	"github.com/BurntSushi/toml"
)

// RunConfig is the optional `.toml` configuration both CLI front ends
// accept via `--config`. Every field has a zero value meaning "use the
// command-line/default instead" so a config file only needs to set what
// it wants to override.
type RunConfig struct {
	BaseAddr string `toml:"base_addr"`
	MaxSteps int    `toml:"max_steps"`
	Trace    bool   `toml:"trace"`
	DumpRegs bool   `toml:"dump_regs"`
}

// LoadRunConfig reads and decodes a TOML run configuration file. A
// missing file is returned as the os.Stat error; callers that want an
// optional config check os.IsNotExist on the returned error.
func LoadRunConfig(path string) (RunConfig, error) {
	var cfg RunConfig
	if _, err := os.Stat(path); err != nil {
		return cfg, err
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
