package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

const (
	MiB = 1024 * 1024

	DefaultChunkSize        = 2000 * MiB
	DefaultPremiumChunkSize = 4000 * MiB
	DefaultMaxNameLength    = 60
	DefaultPolicy           = "smart"
)

// Config represents the main configuration for tt.
type Config struct {
	HostID       string              `toml:"host_id"`
	BaseDir      string              `toml:"base_dir"`
	LogDir       string              `toml:"log_dir"`
	Database     DatabaseConfig      `toml:"database"`
	Transport    TransportConfig     `toml:"transport"`
	Transfer     TransferConfig      `toml:"transfer"`
	Filesystem   FilesystemConfig    `toml:"filesystem"`
	Destinations []DestinationConfig `toml:"destinations"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// TransportConfig represents configuration for the messaging transport.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type TransportConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// TransferConfig holds the global transfer settings. Contracts capture them
// at creation; changing them later only affects new contracts.
type TransferConfig struct {
	ChunkSize        int64  `toml:"chunk_size"`
	PremiumChunkSize int64  `toml:"premium_chunk_size"`
	Premium          bool   `toml:"premium"`
	RateLimit        int64  `toml:"rate_limit"` // bytes per second, 0 = unlimited
	WorkDir          string `toml:"work_dir"`
	Policy           string `toml:"policy"` // "strict", "force" or "smart"
	MaxNameLength    int    `toml:"max_name_length"`
	ValidationRate   int    `toml:"validation_rate"` // re-validation calls per second, 0 = unlimited

	// MetadataDestination, when set, receives a snapshot of the identity
	// store after every mutating command. Name or numeric ID.
	MetadataDestination string `toml:"metadata_destination,omitempty"`
}

// DestinationConfig names a destination.
type DestinationConfig struct {
	Name string `toml:"name"`
	ID   int64  `toml:"id"`
}

// DatabaseConfig represents configuration for the identity store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config with the provided values and default settings.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Transport: TransportConfig{
			Type:   "filesystem",
			Name:   "local",
			FSRoot: filepath.Join(baseDir, "transport"),
		},
		Transfer: TransferConfig{
			ChunkSize:        DefaultChunkSize,
			PremiumChunkSize: DefaultPremiumChunkSize,
			WorkDir:          filepath.Join(baseDir, "work"),
			Policy:           DefaultPolicy,
			MaxNameLength:    DefaultMaxNameLength,
		},
	}
}

// ResolveDestination turns a destination name from the config, or a numeric
// ID, into a destination ID.
func (c *Config) ResolveDestination(s string) (int64, error) {
	for _, d := range c.Destinations {
		if d.Name == s {
			return d.ID, nil
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("unknown destination %q", s)
	}
	return id, nil
}

// DestinationTitles maps configured destination IDs to their names.
func (c *Config) DestinationTitles() map[int64]string {
	titles := make(map[int64]string, len(c.Destinations))
	for _, d := range c.Destinations {
		titles[d.ID] = d.Name
	}
	return titles
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
