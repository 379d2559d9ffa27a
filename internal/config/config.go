package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	PolicyPath string `toml:"policy_path"`
}

// Resolver contains equivalence closure traversal settings.
type Resolver struct {
	MaxDepth    int     `toml:"max_depth"`
	MinStrength float64 `toml:"min_strength"`
}

// Consolidation contains work grouping and merge thresholds.
type Consolidation struct {
	AttachThreshold float64 `toml:"attach_threshold"`
	MergeThreshold  float64 `toml:"merge_threshold"`
	TitleWeight     float64 `toml:"title_weight"`
	AuthorWeight    float64 `toml:"author_weight"`
}

// Batch contains batch runner sizing and pacing.
type Batch struct {
	WorksetSize        int `toml:"workset_size"`
	Workers            int `toml:"workers"`
	ItemTimeoutSeconds int `toml:"item_timeout_seconds"`
	PlateauPasses      int `toml:"plateau_passes"`
}

// SourceHTTP contains connection settings shared by every metadata source client.
type SourceHTTP struct {
	Enabled           bool    `toml:"enabled"`
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Sources contains per-collaborator client configuration.
type Sources struct {
	OpenCatalog SourceHTTP `toml:"open_catalog"`
	Bookmart    SourceHTTP `toml:"bookmart"`
	NameAuth    SourceHTTP `toml:"name_authority"`
	VendorCirc  SourceHTTP `toml:"vendor_circulation"`
	Classify    SourceHTTP `toml:"classify"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Folio.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the tenant policy file
//   - Resolver: equivalence closure depth and strength bounds
//   - Consolidation: work attach/merge similarity thresholds
//   - Batch: workset sizing, worker count, per-item timeout
//   - Sources: per-collaborator endpoints, keys, and request pacing
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Resolver      Resolver      `toml:"resolver"`
	Consolidation Consolidation `toml:"consolidation"`
	Batch         Batch         `toml:"batch"`
	Sources       Sources       `toml:"sources"`
	Logging       Logging       `toml:"logging"`

	// Flattened conveniences populated by normalize.
	DataDir   string `toml:"-"`
	LogDir    string `toml:"-"`
	LogFormat string `toml:"-"`
	LogLevel  string `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/folio/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. Environment variables (optionally
// from a .env file beside the config) override source API keys.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides(resolvedPath)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// applyEnvOverrides loads a .env file beside the config (when present) and
// overlays secret values from the environment so keys stay out of the TOML.
func (c *Config) applyEnvOverrides(configPath string) {
	if configPath != "" {
		envPath := filepath.Join(filepath.Dir(configPath), ".env")
		if info, err := os.Stat(envPath); err == nil && !info.IsDir() {
			_ = godotenv.Load(envPath)
		}
	}
	overlay := func(target *string, key string) {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			*target = value
		}
	}
	overlay(&c.Sources.VendorCirc.APIKey, "FOLIO_VENDOR_API_KEY")
	overlay(&c.Sources.Classify.APIKey, "FOLIO_CLASSIFY_API_KEY")
	overlay(&c.Sources.OpenCatalog.APIKey, "FOLIO_CATALOG_API_KEY")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("folio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories batch runs require.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "folio.db")
}

// LockPath returns the batch-run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "folio.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
