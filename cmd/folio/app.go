package main

import (
	"fmt"
	"log/slog"
	"os"

	"folio/internal/batch"
	"folio/internal/catalog"
	"folio/internal/config"
	"folio/internal/coverage"
	"folio/internal/db"
	"folio/internal/identity"
	"folio/internal/logging"
	"folio/internal/sources/bookmart"
	"folio/internal/sources/classify"
	"folio/internal/sources/nameauth"
	"folio/internal/sources/opencatalog"
	"folio/internal/sources/vendorcirc"
)

// app is the wired resolver stack shared by the commands that touch the
// database.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	db           *db.DB
	ids          *identity.Store
	resolver     *identity.Resolver
	ledger       *coverage.Ledger
	store        *catalog.Store
	orchestrator *coverage.Orchestrator
	runner       *batch.Runner
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	database, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ids := identity.NewStore(database)
	resolver := identity.NewResolver(ids)
	ledger := coverage.NewLedger(database, ids)
	store := catalog.NewStore(database, ids)
	consolidator := catalog.NewConsolidator(store, resolver, cfg, logger)

	var names catalog.NameNormalizer
	if cfg.Sources.NameAuth.Enabled {
		client, clientErr := nameauth.New(cfg.Sources.NameAuth)
		if clientErr != nil {
			_ = database.Close()
			return nil, fmt.Errorf("name authority client: %w", clientErr)
		}
		names = client
	}
	ingestor := catalog.NewIngestor(store, ids, consolidator, names, logger)

	registry := coverage.NewRegistry()
	if err := registerProviders(registry, cfg, ingestor); err != nil {
		_ = database.Close()
		return nil, err
	}

	policy, err := loadPolicy(cfg)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	orchestrator := coverage.NewOrchestrator(registry, ledger, store, policy, logger)
	runner := batch.NewRunner(ids, ledger, orchestrator, cfg, logger)

	return &app{
		cfg:          cfg,
		logger:       logger,
		db:           database,
		ids:          ids,
		resolver:     resolver,
		ledger:       ledger,
		store:        store,
		orchestrator: orchestrator,
		runner:       runner,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// registerProviders builds a coverage provider per enabled source. The union
// catalog is the backbone and therefore required; everything else enriches.
func registerProviders(registry *coverage.Registry, cfg *config.Config, ingestor *catalog.Ingestor) error {
	if cfg.Sources.OpenCatalog.Enabled {
		client, err := opencatalog.New(cfg.Sources.OpenCatalog)
		if err != nil {
			return fmt.Errorf("open catalog client: %w", err)
		}
		provider := catalog.NewSourceProvider(client, "bibliographic", true, true,
			[]identity.Type{identity.TypeISBN, identity.TypeWorkID}, ingestor)
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	if cfg.Sources.Bookmart.Enabled {
		client, err := bookmart.New(cfg.Sources.Bookmart)
		if err != nil {
			return fmt.Errorf("bookmart client: %w", err)
		}
		// Scraping is opt-in per collection policy.
		provider := catalog.NewSourceProvider(client, "bibliographic", false, false,
			[]identity.Type{identity.TypeASIN, identity.TypeISBN}, ingestor)
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	if cfg.Sources.Classify.Enabled {
		client, err := classify.New(cfg.Sources.Classify)
		if err != nil {
			return fmt.Errorf("classify client: %w", err)
		}
		provider := catalog.NewSourceProvider(client, "classification", false, true,
			[]identity.Type{identity.TypeISBN}, ingestor)
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	if cfg.Sources.VendorCirc.Enabled && cfg.Sources.VendorCirc.APIKey != "" {
		client, err := vendorcirc.New(cfg.Sources.VendorCirc)
		if err != nil {
			return fmt.Errorf("vendor circulation client: %w", err)
		}
		provider := catalog.NewSourceProvider(client, "availability", false, true,
			[]identity.Type{identity.TypeVendor}, ingestor)
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	if cfg.Sources.NameAuth.Enabled {
		client, err := nameauth.New(cfg.Sources.NameAuth)
		if err != nil {
			return fmt.Errorf("name authority client: %w", err)
		}
		provider := catalog.NewSourceProvider(client, "authority", false, true,
			[]identity.Type{identity.TypeURI}, ingestor)
		if err := registry.Register(provider); err != nil {
			return err
		}
	}
	return nil
}

func loadPolicy(cfg *config.Config) (*coverage.Policy, error) {
	path := cfg.Paths.PolicyPath
	if path == "" {
		return &coverage.Policy{}, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve policy path: %w", err)
	}
	if _, statErr := os.Stat(expanded); os.IsNotExist(statErr) {
		// No policy file means no collections have opted into anything.
		return &coverage.Policy{}, nil
	}
	policy, err := coverage.LoadPolicy(expanded)
	if err != nil {
		return nil, err
	}
	return policy, nil
}
