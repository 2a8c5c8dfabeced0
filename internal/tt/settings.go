package tt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tt-go/internal/database/sqlc"
)

// Settings are the global transfer parameters. They are read once per run;
// contracts capture the relevant ones at creation and never consult them again.
type Settings struct {
	ChunkSize        int64
	PremiumChunkSize int64
	Premium          bool
	RateLimit        int64 // bytes per second, 0 = unlimited
	WorkDir          string
	MaxNameLength    int // display name limit in characters, 0 = unlimited
	AppVersion       string

	// ValidationRate caps live re-validation calls per second, 0 = unlimited.
	ValidationRate int
	// ValidationTTL is how long a re-validation verdict is reused.
	ValidationTTL time.Duration

	// Destinations maps destination IDs to display titles.
	Destinations map[int64]string
}

// Ceiling returns the per-unit size ceiling in force.
func (s Settings) Ceiling() int64 {
	if s.Premium && s.PremiumChunkSize > 0 {
		return s.PremiumChunkSize
	}
	return s.ChunkSize
}

func (s Settings) workDir() string {
	if s.WorkDir != "" {
		return s.WorkDir
	}
	return filepath.Join(os.TempDir(), "tt")
}

// ContractConfig is the configuration snapshot frozen into a contract.
type ContractConfig struct {
	ChunkSize     int64  `json:"chunk_size"`
	RateLimit     int64  `json:"rate_limit"`
	Premium       bool   `json:"premium"`
	MaxNameLength int    `json:"max_name_length"`
	AppVersion    string `json:"app_version"`
}

func (s Settings) snapshot() ContractConfig {
	return ContractConfig{
		ChunkSize:     s.Ceiling(),
		RateLimit:     s.RateLimit,
		Premium:       s.Premium,
		MaxNameLength: s.MaxNameLength,
		AppVersion:    s.AppVersion,
	}
}

// ParseContractConfig decodes the snapshot stored with a contract.
func ParseContractConfig(c *sqlc.Contract) (ContractConfig, error) {
	var cfg ContractConfig
	if err := json.Unmarshal([]byte(c.Config), &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config of contract %s: %w", c.ID, err)
	}
	return cfg, nil
}

func encodeContractConfig(cfg ContractConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding contract config: %w", err)
	}
	return string(data), nil
}
