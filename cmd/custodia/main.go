package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/sonotxt/custodia/internal/config"
	"github.com/sonotxt/custodia/internal/http_api"
	"github.com/sonotxt/custodia/internal/ledger"
	"github.com/sonotxt/custodia/internal/listener"
	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/internal/notificator"
	"github.com/sonotxt/custodia/internal/reconciler"
	"github.com/sonotxt/custodia/internal/registry"
	"github.com/sonotxt/custodia/internal/repository"
	"github.com/sonotxt/custodia/internal/wallet"
	"github.com/sonotxt/custodia/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "custodia",
		Usage: "Custodia is a crypto deposit intake service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "API listen port"},
			&cli.StringFlag{Name: "seed-file", Aliases: []string{"s"}, Usage: "Path to the wallet seed file"},
			&cli.StringFlag{Name: "assethub-sidecar-url", Aliases: []string{"A"}, Usage: "Asset Hub sidecar URL"},
			&cli.StringFlag{Name: "penumbra-view-url", Aliases: []string{"V"}, Usage: "Penumbra view service URL"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("seed-file") {
		cfg.WalletSeedFile = c.String("seed-file")
	}
	if c.IsSet("assethub-sidecar-url") {
		cfg.AssetHubSidecarURL = c.String("assethub-sidecar-url")
	}
	if c.IsSet("penumbra-view-url") {
		cfg.PenumbraViewURL = c.String("penumbra-view-url")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize the wallet deriver. A missing seed only disables address
	// derivation; listeners and the API keep running.
	deriver, err := wallet.LoadDeriver(cfg.WalletSeed, cfg.WalletSeedFile)
	if err != nil {
		if !errors.Is(err, models.ErrSeedNotConfigured) {
			return fmt.Errorf("failed to load wallet seed: %v", err)
		}
		log.Warn("No wallet seed configured, address derivation disabled")
	}

	// Initialize notification channels
	var telegramNotif *notificator.TelegramNotificator
	if cfg.TelegramBotToken != "" {
		telegramNotif, err = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, db)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram notificator: %v", err)
		}
	}
	var emailNotif *notificator.EmailNotificator
	if cfg.SMTPHost != "" {
		emailNotif = notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	}
	notif := notificator.NewNotificator(log, db, telegramNotif, emailNotif)

	// Initialize the crediting pipeline and the address registry
	led := ledger.New(db, log)
	led.SetNotifier(notif)
	reg := registry.New(db, deriver, cfg.MaxAddressesPerAccount, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize chain listeners. A chain without a configured URL simply
	// does not get a listener.
	var listeners []models.ChainListener
	if cfg.AssetHubSidecarURL != "" {
		listeners = append(listeners, listener.NewAssetHub(
			listener.NewSidecarClient(cfg.AssetHubSidecarURL), db, led,
			cfg.AssetHubAssets, cfg.AssetHubPollInterval, log))
	} else {
		log.Warn("ASSETHUB_SIDECAR_URL not set, Asset Hub listener disabled")
	}
	if cfg.PenumbraViewURL != "" {
		listeners = append(listeners, listener.NewPenumbra(
			listener.NewViewClient(cfg.PenumbraViewURL), db, led,
			cfg.PenumbraAsset, cfg.PenumbraPollInterval, log))
	} else {
		log.Warn("PENUMBRA_VIEW_URL not set, Penumbra listener disabled")
	}

	// Each listener connects inside its own run loop with retry, so an
	// unreachable chain endpoint at boot never takes the process down.
	var wg sync.WaitGroup
	for _, l := range listeners {
		reg.SetWatcher(l.Chain(), l)
		wg.Add(1)
		go func(l models.ChainListener) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}

	// Start the reconciler sweep
	rec := reconciler.New(db, led, cfg.ReconcileInterval, cfg.MinConfirmations, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec.Run(ctx)
	}()

	// Start the API server
	apiServer := http_api.NewHTTPServer(reg, led, db, cfg.APIPort, log)
	go apiServer.Start()

	<-ctx.Done()
	if err := apiServer.Shutdown(); err != nil {
		log.Error("Failed to shut down API server: ", err)
	}
	wg.Wait()

	return nil
}
