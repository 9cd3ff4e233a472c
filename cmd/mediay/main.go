package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marvinkome/mediay/internal/config"
	"github.com/marvinkome/mediay/internal/db"
	"github.com/marvinkome/mediay/internal/http/api"
	"github.com/marvinkome/mediay/internal/identity"
	"github.com/marvinkome/mediay/internal/secrets"
	"github.com/marvinkome/mediay/internal/session"
	"github.com/marvinkome/mediay/internal/store"

	log "github.com/sirupsen/logrus"
)

// main runs the server entrypoint and exits on unrecoverable errors.
func main() {
	if errRun := run(context.Background(), os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("server failed")
		os.Exit(1)
	}
}

// run parses flags, loads config, and starts the HTTP server.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mediay", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 8300, "server port")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	configPath := strings.TrimSpace(*cfgPath)
	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigPath)
	}
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}

	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return fmt.Errorf("open database: %w", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate database: %w", errMigrate)
	}

	cipher, errCipher := secrets.NewCipher(cfg.EncryptionKey)
	if errCipher != nil {
		return errCipher
	}
	sessions, errSessions := session.NewManager(cfg.SessionSecret, cfg.SessionSecure)
	if errSessions != nil {
		return errSessions
	}

	var google *identity.GoogleProvider
	if strings.TrimSpace(cfg.Google.ClientID) != "" {
		var errGoogle error
		google, errGoogle = identity.NewGoogleProvider(ctx, cfg.Google)
		if errGoogle != nil {
			return fmt.Errorf("init google provider: %w", errGoogle)
		}
	} else {
		log.Warn("google sign-in disabled: no client id configured")
	}

	var magic *identity.MagicProvider
	if strings.TrimSpace(cfg.Magic.SecretKey) != "" {
		var errMagic error
		magic, errMagic = identity.NewMagicProvider(cfg.Magic.SecretKey, cfg.Magic.BaseURL)
		if errMagic != nil {
			return fmt.Errorf("init magic provider: %w", errMagic)
		}
	} else {
		log.Warn("magic sign-in disabled: no secret key configured")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, conn, store.New(conn, cipher), sessions, google, magic)

	addr := fmt.Sprintf(":%d", *port)
	log.WithField("addr", addr).Info("starting server")
	return engine.Run(addr)
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
