package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

const (
	EnvPrefix  = "MW"
	configDir  = ".mw"
	configFile = "config.toml"

	MainGenesisID = "0x00000000851caf3cfdb6e899cf5958bfb1ac3413d346d43539627e6be7ec1b4a"
	TestGenesisID = "0x000000000b2bce3c70bc649a02749e8687721b09ed2e15997f466536b20bb127"
)

type Config struct {
	Network     domain.NetworkName
	Networks    map[domain.NetworkName]NetworkConfig
	Pairing     PairingConfig
	App         AppConfig
	Handshake   HandshakeConfig
	Receipt     ReceiptConfig
	StatePath   string
	Secrets     SecretsConfig
	Environment EnvironmentConfig
	DevKeyLabel string
	Log         LogConfig
	Telemetry   TelemetryConfig
}

type NetworkConfig struct {
	NodeURL   string
	GenesisID string
}

type PairingConfig struct {
	ProjectID string
	RelayURL  string
	Timeout   time.Duration
}

type AppConfig struct {
	Name        string
	Description string
	URL         string
	IconURL     string
	// Domain is the certificate domain, defaulting to the host of URL.
	Domain string
}

type HandshakeConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

type ReceiptConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
}

type SecretsConfig struct {
	// Backend is "pass" (pass with a file fallback) or "file".
	Backend string
	Dir     string
}

type EnvironmentConfig struct {
	Dir           string
	UserAgent     string
	TouchPoints   int
	ViewportWidth int
}

type LogConfig struct {
	Level  slog.Level
	Format string
}

type TelemetryConfig struct {
	OTLPEndpoint string
}

// SetDefaults registers every default in one place.
func SetDefaults(v *viper.Viper, homeDir string) {
	base := filepath.Join(homeDir, configDir)

	v.SetDefault("network", string(domain.NetworkMain))
	v.SetDefault("networks.main.node_url", "https://mainnet.vechain.org")
	v.SetDefault("networks.main.genesis_id", MainGenesisID)
	v.SetDefault("networks.test.node_url", "https://testnet.vechain.org")
	v.SetDefault("networks.test.genesis_id", TestGenesisID)
	v.SetDefault("pairing.project_id", "")
	v.SetDefault("pairing.relay_url", "")
	v.SetDefault("pairing.timeout", 5*time.Minute)
	v.SetDefault("app.name", "Marketplace")
	v.SetDefault("app.description", "NFT marketplace")
	v.SetDefault("app.url", "https://marketplace.example")
	v.SetDefault("app.icon_url", "")
	v.SetDefault("app.domain", "")
	v.SetDefault("handshake.timeout", 10*time.Second)
	v.SetDefault("handshake.poll_interval", 500*time.Millisecond)
	v.SetDefault("receipt.poll_interval", 2*time.Second)
	v.SetDefault("receipt.max_attempts", 90)
	v.SetDefault("state.path", filepath.Join(base, "state.toml"))
	v.SetDefault("secrets.backend", "pass")
	v.SetDefault("secrets.dir", filepath.Join(base, "secrets"))
	v.SetDefault("environment.dir", filepath.Join(base, "providers"))
	v.SetDefault("environment.user_agent", "")
	v.SetDefault("environment.touch_points", 0)
	v.SetDefault("environment.viewport_width", 0)
	v.SetDefault("devkey.label", "default")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// Load reads the config file (when present) and MW_* environment overrides into v
// and returns the typed view. An empty path selects ~/.mw/config.toml.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	SetDefaults(v, homeDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, configDir, configFile)
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	network, err := domain.ParseNetworkName(v.GetString("network"))
	if err != nil {
		return Config{}, err
	}
	// Downstream readers of the shared viper see the normalized name.
	v.Set("network", string(network))

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return Config{}, fmt.Errorf("parse log.level: %w", err)
	}
	format := strings.ToLower(v.GetString("log.format"))
	if format != "text" && format != "json" {
		return Config{}, fmt.Errorf("unsupported log.format %q", format)
	}

	backend := strings.ToLower(v.GetString("secrets.backend"))
	if backend != "pass" && backend != "file" {
		return Config{}, fmt.Errorf("unsupported secrets.backend %q", backend)
	}

	appURL := v.GetString("app.url")
	appDomain := v.GetString("app.domain")
	if appDomain == "" {
		appDomain = hostOf(appURL)
	}

	return Config{
		Network: network,
		Networks: map[domain.NetworkName]NetworkConfig{
			domain.NetworkMain: {NodeURL: v.GetString("networks.main.node_url"), GenesisID: v.GetString("networks.main.genesis_id")},
			domain.NetworkTest: {NodeURL: v.GetString("networks.test.node_url"), GenesisID: v.GetString("networks.test.genesis_id")},
		},
		Pairing: PairingConfig{
			ProjectID: v.GetString("pairing.project_id"),
			RelayURL:  v.GetString("pairing.relay_url"),
			Timeout:   v.GetDuration("pairing.timeout"),
		},
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Description: v.GetString("app.description"),
			URL:         appURL,
			IconURL:     v.GetString("app.icon_url"),
			Domain:      appDomain,
		},
		Handshake: HandshakeConfig{
			Timeout:      v.GetDuration("handshake.timeout"),
			PollInterval: v.GetDuration("handshake.poll_interval"),
		},
		Receipt: ReceiptConfig{
			PollInterval: v.GetDuration("receipt.poll_interval"),
			MaxAttempts:  v.GetInt("receipt.max_attempts"),
		},
		StatePath: v.GetString("state.path"),
		Secrets:   SecretsConfig{Backend: backend, Dir: v.GetString("secrets.dir")},
		Environment: EnvironmentConfig{
			Dir:           v.GetString("environment.dir"),
			UserAgent:     v.GetString("environment.user_agent"),
			TouchPoints:   v.GetInt("environment.touch_points"),
			ViewportWidth: v.GetInt("environment.viewport_width"),
		},
		DevKeyLabel: v.GetString("devkey.label"),
		Log:         LogConfig{Level: level, Format: format},
		Telemetry:   TelemetryConfig{OTLPEndpoint: v.GetString("telemetry.otlp_endpoint")},
	}, nil
}

// NetworkDescriptor resolves and validates the selected network.
func (c Config) NetworkDescriptor() (domain.NetworkDescriptor, error) {
	selected, ok := c.Networks[c.Network]
	if !ok {
		return domain.NetworkDescriptor{}, fmt.Errorf("unsupported network %q", c.Network)
	}

	descriptor := domain.NetworkDescriptor{
		ID:      strings.ToLower(strings.TrimSpace(selected.GenesisID)),
		Name:    c.Network,
		NodeURL: strings.TrimSpace(selected.NodeURL),
	}
	if err := descriptor.Validate(); err != nil {
		return domain.NetworkDescriptor{}, fmt.Errorf("network %s: %w", c.Network, err)
	}
	return descriptor, nil
}

func hostOf(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return parsed.Host
}
