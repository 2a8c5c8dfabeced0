package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables, in order of precedence:
//   - TT_CONFIG_PATH, then XDG_CONFIG_HOME/tt.toml: config file (default ~/.config/tt.toml)
//   - TT_HOME, then XDG_DATA_HOME/tt: base directory for tt data (default ~/.local/share/tt)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"work_dir":    filepath.Join(baseDir, "work"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("TT_CONFIG_PATH"); path != "" {
		return path, nil
	}
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tt.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv("TT_HOME"); path != "" {
		return path, nil
	}
	dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tt"), nil
}

// xdgDir returns $env when it holds an absolute path, else ~/fallback.
func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, fallback), nil
}
