package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the per-project config file name.
const ConfigFileName = ".bigmat.json"

// Config holds the CLI's resolved settings.
type Config struct {
	// IPCDir is the namespace directory for mutexes and counters.
	// Empty means the platform default.
	IPCDir string `json:"ipc_dir,omitempty"`

	// DataDir is where backing files are created when a matrix is
	// created without an explicit path. Empty means the working
	// directory.
	DataDir string `json:"data_dir,omitempty"`
}

// LoadConfig resolves configuration with the following precedence
// (highest wins):
//  1. Defaults (empty, meaning platform/working-directory defaults)
//  2. Project config file (.bigmat.json in workDir, if present)
//  3. Environment (BIGMAT_IPC_DIR, BIGMAT_DATA_DIR)
//  4. CLI overrides.
func LoadConfig(workDir string, overrides Config, env map[string]string) (Config, error) {
	var cfg Config

	fileCfg, err := loadConfigFile(filepath.Join(workDir, ConfigFileName))
	if err != nil {
		return Config{}, err
	}

	cfg = mergeConfig(cfg, fileCfg)

	cfg = mergeConfig(cfg, Config{
		IPCDir:  env["BIGMAT_IPC_DIR"],
		DataDir: env["BIGMAT_DATA_DIR"],
	})

	cfg = mergeConfig(cfg, overrides)

	if cfg.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(workDir, cfg.DataDir)
	}

	return cfg, nil
}

// loadConfigFile reads a JWCC config file. A missing file is not an
// error; it just contributes nothing.
func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.IPCDir != "" {
		base.IPCDir = overlay.IPCDir
	}

	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	return base
}
