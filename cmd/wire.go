package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/marketplace-wallet/internal/adapters/config"
	"github.com/bnema/marketplace-wallet/internal/adapters/devkey"
	"github.com/bnema/marketplace-wallet/internal/adapters/environment"
	"github.com/bnema/marketplace-wallet/internal/adapters/notify"
	"github.com/bnema/marketplace-wallet/internal/adapters/pairing"
	statusadapter "github.com/bnema/marketplace-wallet/internal/adapters/render/status"
	tomlrepo "github.com/bnema/marketplace-wallet/internal/adapters/repo/toml"
	chainstore "github.com/bnema/marketplace-wallet/internal/adapters/secrets/chain"
	filestore "github.com/bnema/marketplace-wallet/internal/adapters/secrets/file"
	"github.com/bnema/marketplace-wallet/internal/adapters/telemetry"
	"github.com/bnema/marketplace-wallet/internal/adapters/thor"
	"github.com/bnema/marketplace-wallet/internal/application"
	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/bnema/marketplace-wallet/internal/version"
)

const configPathEnv = "MW_CONFIG"

type app struct {
	cfg       config.Config
	network   domain.NetworkDescriptor
	service   *application.Service
	env       *environment.Local
	keyring   devkey.Keyring
	devKeys   devkey.Provider
	notifier  *notify.Terminal
	telemetry *telemetry.Provider
	logger    *slog.Logger
	renderers renderers
	now       func() time.Time
}

type renderers struct {
	status  func(application.Status, statusadapter.RenderOptions) (string, error)
	probe   func(application.ProbeReport, statusadapter.RenderOptions) (string, error)
	receipt func(domain.Receipt, statusadapter.RenderOptions) (string, error)
}

func wireApp(stderr io.Writer) (*app, error) {
	v := viper.New()
	cfg, err := config.Load(v, os.Getenv(configPathEnv))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	network, err := cfg.NetworkDescriptor()
	if err != nil {
		return nil, err
	}

	logger := newLogger(stderr, cfg.Log)

	tracing, err := telemetry.New(context.Background(), telemetry.Config{
		ServiceName:    "mw",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("wire telemetry: %w", err)
	}

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire state repository: %w", err)
	}

	secrets, err := newSecretStore(cfg.Secrets, logger)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	httpClient := &http.Client{}
	node := thor.Client{BaseURL: network.NodeURL, HTTPClient: httpClient}
	notifier := notify.NewTerminal(stderr, false)

	keyring := devkey.Keyring{Store: secrets, Label: cfg.DevKeyLabel}
	devKeys := devkey.Provider{Keyring: keyring, Node: node, Logger: logger}

	env := environment.NewLocal(environment.Options{
		Dir:            cfg.Environment.Dir,
		UserAgent:      cfg.Environment.UserAgent,
		MaxTouchPoints: cfg.Environment.TouchPoints,
		ViewportWidth:  cfg.Environment.ViewportWidth,
		HTTPClient:     httpClient,
		Logger:         logger,
	})
	if err := env.Reload(); err != nil {
		logger.Warn("some wallet providers could not be loaded", "error", err)
	}
	if devKeys.Available(context.Background(), network.Name) {
		env.Set(ports.GlobalDevKey, devKeys)
	}

	store := application.NewSessionStore(network, repo, notifier, logger)
	probe := application.NewCapabilityProbe(env)

	var modal ports.PairingModal
	if cfg.Pairing.RelayURL != "" {
		modal = &pairing.Relay{
			BaseURL:    cfg.Pairing.RelayURL,
			HTTPClient: httpClient,
			Timeout:    cfg.Pairing.Timeout,
			Present: func(uri string) {
				notifier.Notify(domain.Notification{
					Kind:        domain.NotificationInfo,
					Title:       "Open this link in your mobile wallet",
					Description: uri,
				})
			},
			Logger: logger,
		}
	}

	strategies := application.DefaultStrategies(application.StrategyConfig{
		Env:              env,
		Probe:            probe,
		Notifier:         notifier,
		Logger:           logger,
		HandshakeTimeout: cfg.Handshake.Timeout,
		PollInterval:     cfg.Handshake.PollInterval,
		AppDomain:        cfg.App.Domain,
	}, modal, ports.PairingRequest{
		ProjectID: cfg.Pairing.ProjectID,
		Metadata: ports.AppMetadata{
			Name:        cfg.App.Name,
			Description: cfg.App.Description,
			URL:         cfg.App.URL,
			IconURL:     cfg.App.IconURL,
		},
	})

	orchestrator, err := application.NewOrchestrator(application.OrchestratorConfig{
		Network:    network,
		Probe:      probe,
		Strategies: strategies,
		Store:      store,
		Notifier:   notifier,
		Logger:     logger,
		Tracer:     tracing.Tracer(),
	})
	if err != nil {
		return nil, fmt.Errorf("wire orchestrator: %w", err)
	}

	gateway, err := application.NewTransactionGateway(application.GatewayConfig{
		Store:        store,
		Node:         node,
		Notifier:     notifier,
		Logger:       logger,
		Tracer:       tracing.Tracer(),
		PollInterval: cfg.Receipt.PollInterval,
		MaxAttempts:  cfg.Receipt.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("wire transaction gateway: %w", err)
	}

	return &app{
		cfg:       cfg,
		network:   network,
		service:   application.NewService(network, probe, orchestrator, store, gateway),
		env:       env,
		keyring:   keyring,
		devKeys:   devKeys,
		notifier:  notifier,
		telemetry: tracing,
		logger:    logger,
		renderers: renderers{
			status:  statusadapter.Render,
			probe:   statusadapter.RenderProbe,
			receipt: statusadapter.RenderReceipt,
		},
		now: time.Now,
	}, nil
}

func newLogger(out io.Writer, cfg config.LogConfig) *slog.Logger {
	options := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, options))
	}
	return slog.New(slog.NewTextHandler(out, options))
}

func newSecretStore(cfg config.SecretsConfig, logger *slog.Logger) (ports.SecretStore, error) {
	if cfg.Backend == "file" {
		return filestore.NewStore(cfg.Dir), nil
	}

	store, err := chainstore.NewPassFirstWithFileFallback(cfg.Dir)
	if err != nil {
		return nil, err
	}
	store.SetLogger(logger)
	return store, nil
}

// refreshDevKey keeps the devKey global in step with the keyring after devkey
// commands change it.
func (a *app) refreshDevKey(ctx context.Context) {
	if a.devKeys.Available(ctx, a.network.Name) {
		a.env.Set(ports.GlobalDevKey, a.devKeys)
		return
	}
	a.env.Remove(ports.GlobalDevKey)
}

func (a *app) renderOptions(width int) statusadapter.RenderOptions {
	return statusadapter.RenderOptions{Now: a.now(), Width: width}
}
