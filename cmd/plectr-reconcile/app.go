package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/plectr/reconcile/internal/config"
	"github.com/plectr/reconcile/internal/report"
	"github.com/plectr/reconcile/internal/s3client"
	"github.com/plectr/reconcile/pkg/blobstore"
	"github.com/plectr/reconcile/pkg/commitsvc"
	"github.com/plectr/reconcile/pkg/logger"
	"github.com/plectr/reconcile/pkg/session"
)

// app holds everything a command needs once configuration is resolved.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	printer *report.Printer
	service commitsvc.Service
	blobs   blobstore.Store
	hasher  blobstore.Hasher
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, overrides(cmd))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewStderr(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	service, err := commitsvc.NewHTTPClient(cfg.Server.URL,
		commitsvc.WithToken(cfg.Server.Token),
		commitsvc.WithTimeout(cfg.Server.Timeout),
		commitsvc.WithRateLimit(cfg.Server.RequestsPerSecond),
	)
	if err != nil {
		return nil, err
	}

	blobs, hasher, err := openBlobStore(cmd.Context(), cfg.Blobs)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		printer: report.NewPrinter(quiet),
		service: service,
		blobs:   blobs,
		hasher:  hasher,
	}, nil
}

func openBlobStore(ctx context.Context, c config.BlobsConfig) (blobstore.Store, blobstore.Hasher, error) {
	hasher, err := blobstore.NewHasher(c.Hash)
	if err != nil {
		return nil, nil, err
	}

	switch c.Backend {
	case config.BackendFS:
		store, err := blobstore.NewFSStore(c.Dir, hasher)
		if err != nil {
			return nil, nil, err
		}
		return store, hasher, nil
	case config.BackendMemory:
		return blobstore.NewMemoryStore(hasher), hasher, nil
	}

	var configOpts []func(*awsconfig.LoadOptions) error
	if c.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	if c.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(c.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	retry := s3client.DefaultRetryPolicy()
	retry.MaxRetries = c.MaxRetries
	client := s3client.NewClient(awsCfg, retry)

	return blobstore.NewS3Store(client, c.Bucket, c.Prefix, hasher), hasher, nil
}

// openSession creates and initializes a session for one divergent commit.
func (a *app) openSession(ctx context.Context, repo, divergent string) (*session.Session, error) {
	s, err := session.New(session.Config{
		Repo:          repo,
		LocalCommitID: divergent,
		Service:       a.service,
		Blobs:         a.blobs,
		Hasher:        a.hasher,
		Logger:        a.log,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
