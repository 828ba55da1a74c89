package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"cmms-backend/config"
	"cmms-backend/internal/auth"
	"cmms-backend/internal/db"
	"cmms-backend/internal/remote"
	"cmms-backend/internal/schema"
	"cmms-backend/internal/store"
	"cmms-backend/internal/syncer"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	store    store.Store
	registry *schema.Registry
	sync     *syncer.Manager
	users    *auth.Users
}

func newApp(ctx context.Context, logger *log.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	s, err := openStore(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	logger.Printf("%s document store initialized", cfg.Storage.Backend)

	registry, err := schema.NewRegistry(ctx, s)
	if err != nil {
		return nil, err
	}

	opts := syncer.Options{
		RemotePath:      cfg.Remote.Path,
		LocalPath:       cfg.Workbook.LocalPath,
		RefreshInterval: cfg.Workbook.RefreshInterval,
		Schemas:         registry,
	}
	wireRemote(&cfg.Remote, &opts)
	if opts.Committer == nil {
		logger.Printf("no remote credential configured; changes will be saved locally only")
	}
	mgr := syncer.NewManager(opts)
	registry.SetRowCounter(mgr)

	users, err := auth.NewUsers(ctx, s, cfg.Session.AdminUser, cfg.Auth.DefaultAdminPassword)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: s, registry: registry, sync: mgr, users: users}, nil
}

func openStore(cfg *config.StorageConfig) (store.Store, error) {
	if cfg.Backend == "file" {
		return store.NewFileStore(cfg.Dir)
	}
	gormDB, err := db.Init(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store.NewGormStore(gormDB), nil
}

// wireRemote sets the retrieval and commit clients for the configured remote
// kind. Commits need a credential.
func wireRemote(cfg *config.RemoteConfig, opts *syncer.Options) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Kind {
	case "git":
		if cfg.GitURL == "" {
			return
		}
		g := remote.NewGitClient(cfg.GitURL, cfg.Branch, cfg.Token)
		opts.Raw = g
		if cfg.Token != "" {
			opts.Committer = g
		}
	default:
		if cfg.Repository == "" {
			return
		}
		opts.Raw = remote.NewRawClient(cfg.RawBaseURL, cfg.Repository, cfg.Branch, timeout)
		if cfg.Token != "" {
			contents := remote.NewContentsClient(cfg.APIBaseURL, cfg.Repository, cfg.Branch, cfg.Token, timeout)
			opts.API = contents
			opts.Committer = contents
		}
	}
}
