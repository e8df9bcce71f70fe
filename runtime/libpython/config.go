package libpython

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config selects which interpreter library to load and how to present
// the process to it. The zero value means "discover everything".
type Config struct {
	// Library is the path to the shared interpreter library. When empty
	// the library is located by asking the interpreter executable for
	// its build configuration.
	Library string `toml:"library"`

	// Python is the interpreter executable used for discovery.
	// Defaults to "python3" on PATH.
	Python string `toml:"python"`

	// Program is the program name announced to the runtime before
	// initialization. Defaults to the discovery executable.
	Program string `toml:"program"`
}

// LoadConfig reads a Config from a TOML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}

// withEnv applies environment overrides. PYGO_LIBRARY and PYGO_PYTHON
// win over the file-provided values.
func (c Config) withEnv() Config {
	if lib := os.Getenv("PYGO_LIBRARY"); lib != "" {
		c.Library = lib
	}
	if py := os.Getenv("PYGO_PYTHON"); py != "" {
		c.Python = py
	}
	if c.Python == "" {
		c.Python = "python3"
	}
	return c
}
