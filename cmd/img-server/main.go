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

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lxl66566/img-server/images/application"
	"github.com/lxl66566/img-server/images/persistence"
	"github.com/lxl66566/img-server/internal/logging"
	"github.com/lxl66566/img-server/internal/middleware"
	"github.com/lxl66566/img-server/internal/rest"
)

const shutdownTimeout = 5 * time.Second

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "img-server",
		Short: "Self-hosted deduplicating image repository",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}
	serve.Flags().StringVarP(&addr, "addr", "a", "0.0.0.0:3918", "listen address")

	genToken := &cobra.Command{
		Use:   "gen-token",
		Short: "Generate a new admin token and add it to the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenToken()
		},
	}

	root.AddCommand(serve, genToken)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return persistence.DefaultConfigPath()
}

func setup() (*application.ImageService, *persistence.Index, *persistence.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := persistence.LoadConfig(path)
	if err != nil {
		return nil, nil, nil, err
	}

	index := persistence.NewIndex(cfg, path)
	store := persistence.NewStore(cfg.ImagesDir(), cfg.ThumbsDir(), cfg.StagingDir())
	return application.NewImageService(index, store), index, cfg, nil
}

func runServe(addr string) error {
	svc, index, cfg, err := setup()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogsDir())

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	rest.NewApi(router, svc, index, cfg.MaxSizeBytes())

	srv := &http.Server{
		Addr:    addr,
		Handler: cors.AllowAll().Handler(router),
	}

	go func() {
		log.Info().
			Str("addr", addr).
			Str("images_dir", cfg.ImagesDir()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

func runGenToken() error {
	svc, _, _, err := setup()
	if err != nil {
		return err
	}

	token, err := svc.GenerateToken()
	if err != nil {
		return err
	}

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	fmt.Printf("Generated admin token: %s\n", token)
	fmt.Printf("Token added to config at: %s\n", path)
	return nil
}
