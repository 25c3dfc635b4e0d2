package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statementvault/internal/db"
	"statementvault/internal/server"
	"statementvault/internal/statement"
	"statementvault/internal/storage"
	"statementvault/internal/store"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server and the token sweeper",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, err := loadConfig()
	if err != nil {
		return err
	}

	s3Client, err := newS3Client(ctx, config)
	if err != nil {
		return err
	}

	objects := storage.NewS3Store(s3Client, config.S3BucketName,
		time.Duration(config.StorageTimeoutSec)*time.Second)

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	customerRepo := store.NewCustomerRepository(pool)
	statementRepo := store.NewStatementRepository(pool)
	tokenRepo := store.NewDownloadTokenRepository(pool)
	auditRepo := store.NewAuditLogRepository(pool)

	core := statement.New(logger, config, objects, statementRepo, tokenRepo, customerRepo, auditRepo)

	sweeper := statement.NewSweeper(logger, tokenRepo,
		time.Duration(config.SweepIntervalMinutes)*time.Minute,
		time.Duration(config.TokenRetentionHours)*time.Hour)
	sweeper.Start()
	defer sweeper.Stop()

	var jwkCache *jwk.Cache
	if config.JWKSURL != "" {
		jwkCache, err = jwk.NewCache(context.Background(), httprc.NewClient())
		if err != nil {
			return fmt.Errorf("failed to initialize jwk cache: %w", err)
		}

		if err := jwkCache.Register(context.Background(), config.JWKSURL); err != nil {
			return fmt.Errorf("failed to register jwks url with cache: %w", err)
		}
	}

	srv, err := server.New(
		config,
		logger,
		core,
		customerRepo,
		jwkCache,
		config.JWKSURL,
	)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
