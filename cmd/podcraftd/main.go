package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/podcraft/backend/internal/account"
	"github.com/podcraft/backend/internal/admin"
	"github.com/podcraft/backend/internal/billing"
	"github.com/podcraft/backend/internal/generation"
	"github.com/podcraft/backend/internal/httpserver"
	"github.com/podcraft/backend/internal/project"
	"github.com/podcraft/backend/internal/store/gormstore"
	"github.com/podcraft/backend/internal/store/pgstore"
	"github.com/podcraft/backend/pkg/ledger"
)

const (
	flagDatabaseURL     = "database-url"
	flagLedgerBackend   = "ledger-backend"
	flagListenAddr      = "listen-addr"
	flagAllowedOrigins  = "allowed-origins"
	flagTokenSigningKey = "token-signing-key"
	flagTokenIssuer     = "token-issuer"
	flagTokenTTL        = "token-ttl"
	flagSignupBonus     = "signup-bonus"
	flagCentsPerCredit  = "cents-per-credit"
	flagScriptCost      = "script-cost"
	flagTTSCost         = "tts-cost"
	flagImageCost       = "image-cost"
	flagVideoCost       = "video-cost"
	flagPlatformFee     = "platform-fee"
	flagMaxProjects     = "max-projects"
	flagAssetBaseURL    = "asset-base-url"

	envPrefix = "PODCRAFT"

	defaultDatabaseURL = "sqlite:///tmp/podcraft.db"

	ledgerBackendGorm = "gorm"
	ledgerBackendPgx  = "pgx"
)

type runtimeConfig struct {
	DatabaseURL   string
	LedgerBackend string
	HTTP          httpserver.Config
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "podcraftd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	root := &cobra.Command{
		Use:           "podcraftd",
		Short:         "Podcast generation API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	registerFlags(serve)

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cfg)
		},
	}
	registerFlags(migrate)

	root.AddCommand(serve, migrate)
	return root
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "database connection string (postgres:// or sqlite path)")
	cmd.Flags().String(flagLedgerBackend, ledgerBackendGorm, "ledger store backend: gorm or pgx (pgx requires a postgres database url)")
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagTokenSigningKey, "", "access token signing key (required)")
	cmd.Flags().String(flagTokenIssuer, "", "access token issuer")
	cmd.Flags().Duration(flagTokenTTL, 0, "access token lifetime (e.g. 720h)")
	cmd.Flags().Int64(flagSignupBonus, 0, "credits granted on registration")
	cmd.Flags().Int64(flagCentsPerCredit, 0, "purchase price per credit in cents")
	cmd.Flags().Int64(flagScriptCost, 0, "script generation cost in credits")
	cmd.Flags().Int64(flagTTSCost, 0, "narration cost in credits")
	cmd.Flags().Int64(flagImageCost, 0, "cover image cost in credits")
	cmd.Flags().Int64(flagVideoCost, 0, "video render cost in credits")
	cmd.Flags().Int64(flagPlatformFee, 0, "per-generation platform fee in credits")
	cmd.Flags().Int(flagMaxProjects, 0, "maximum projects per user")
	cmd.Flags().String(flagAssetBaseURL, "", "base URL for generated asset links")
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{
		flagDatabaseURL, flagLedgerBackend, flagListenAddr, flagAllowedOrigins,
		flagTokenSigningKey, flagTokenIssuer, flagTokenTTL,
		flagSignupBonus, flagCentsPerCredit,
		flagScriptCost, flagTTSCost, flagImageCost, flagVideoCost, flagPlatformFee,
		flagMaxProjects, flagAssetBaseURL,
	} {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.LedgerBackend = strings.TrimSpace(v.GetString(flagLedgerBackend))
	if cfg.LedgerBackend == "" {
		cfg.LedgerBackend = ledgerBackendGorm
	}
	if cfg.LedgerBackend != ledgerBackendGorm && cfg.LedgerBackend != ledgerBackendPgx {
		return fmt.Errorf("unsupported ledger backend %q", cfg.LedgerBackend)
	}

	cfg.HTTP = httpserver.Config{
		ListenAddr:          v.GetString(flagListenAddr),
		AllowedOrigins:      httpserver.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		TokenSigningKey:     v.GetString(flagTokenSigningKey),
		TokenIssuer:         v.GetString(flagTokenIssuer),
		TokenTTL:            v.GetDuration(flagTokenTTL),
		SignupBonusCredits:  v.GetInt64(flagSignupBonus),
		CentsPerCredit:      v.GetInt64(flagCentsPerCredit),
		ScriptCostCredits:   v.GetInt64(flagScriptCost),
		TTSCostCredits:      v.GetInt64(flagTTSCost),
		ImageCostCredits:    v.GetInt64(flagImageCost),
		VideoCostCredits:    v.GetInt64(flagVideoCost),
		PlatformFeeCredits:  v.GetInt64(flagPlatformFee),
		MaxProjectsPerUser:  v.GetInt(flagMaxProjects),
		AssetBaseURL:        v.GetString(flagAssetBaseURL),
		ShutdownGracePeriod: 0,
		RequestTimeout:      0,
	}
	return cfg.HTTP.Validate()
}

func runServe(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	// SQLite schemas are applied on start; postgres deployments run the
	// migrate subcommand during rollout.
	if driver == "sqlite" {
		if err := gormstore.Migrate(gormDB); err != nil {
			return err
		}
	}

	ledgerStore, closeLedger, err := openLedgerStore(ctx, cfg, gormDB, driver)
	if err != nil {
		return err
	}
	defer closeLedger()

	clock := func() int64 { return time.Now().UTC().Unix() }
	credits, err := ledger.NewService(ledgerStore, clock, ledger.WithOperationLogger(&zapOperationLogger{logger: logger}))
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}

	accountStore := gormstore.NewAccountStore(gormDB)
	accounts, err := account.NewService(accountStore, credits, account.Config{
		SigningKey:  []byte(cfg.HTTP.TokenSigningKey),
		Issuer:      cfg.HTTP.TokenIssuer,
		TokenTTL:    cfg.HTTP.TokenTTL,
		SignupBonus: cfg.HTTP.SignupBonusCredits,
	}, clock)
	if err != nil {
		return fmt.Errorf("account service init: %w", err)
	}

	stub := generation.NewStubProvider(cfg.HTTP.AssetBaseURL)
	projectStore := gormstore.NewProjectStore(gormDB)
	projects, err := project.NewService(projectStore, credits, generation.Providers{
		Script: stub,
		Speech: stub,
		Image:  stub,
		Video:  stub,
	}, project.Config{
		Costs: project.Costs{
			Script:      cfg.HTTP.ScriptCostCredits,
			TTS:         cfg.HTTP.TTSCostCredits,
			Image:       cfg.HTTP.ImageCostCredits,
			Video:       cfg.HTTP.VideoCostCredits,
			PlatformFee: cfg.HTTP.PlatformFeeCredits,
		},
		MaxProjectsPerOwner: cfg.HTTP.MaxProjectsPerUser,
	}, clock)
	if err != nil {
		return fmt.Errorf("project service init: %w", err)
	}

	billingService, err := billing.NewService(credits, billing.Config{CentsPerCredit: cfg.HTTP.CentsPerCredit})
	if err != nil {
		return fmt.Errorf("billing service init: %w", err)
	}

	admins, err := admin.NewService(accountStore, projectStore, credits, gormstore.NewStatsStore(gormDB), clock)
	if err != nil {
		return fmt.Errorf("admin service init: %w", err)
	}

	server := httpserver.New(logger, accounts, projects, billingService, admins, credits, cfg.HTTP)
	return server.Run(ctx)
}

func runMigrate(ctx context.Context, cfg *runtimeConfig) error {
	gormDB, cleanup, _, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if err := gormstore.Migrate(gormDB); err != nil {
		return err
	}
	fmt.Println("schema up to date")
	return nil
}

// openLedgerStore picks the ledger persistence backend. The gorm store shares
// the primary database; the pgx store keeps its own pool against the same
// postgres instance.
func openLedgerStore(ctx context.Context, cfg *runtimeConfig, gormDB *gorm.DB, driver string) (ledger.Store, func(), error) {
	switch cfg.LedgerBackend {
	case ledgerBackendPgx:
		if driver != "postgres" {
			return nil, nil, fmt.Errorf("ledger backend pgx requires a postgres database url")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("pgx pool: %w", err)
		}
		return pgstore.New(pool), pool.Close, nil
	default:
		return gormstore.NewLedgerStore(gormDB), func() {}, nil
	}
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormCfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormCfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "podcraft.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// zapOperationLogger forwards ledger operation callbacks to zap.
type zapOperationLogger struct {
	logger *zap.Logger
}

func (adapter *zapOperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("account_id", entry.AccountID.String()),
		zap.String("transaction_id", entry.TransactionID.String()),
		zap.Int64("amount", entry.Amount.Int64()),
		zap.String("kind", entry.Kind.String()),
		zap.String("label", entry.Label.String()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		adapter.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("ledger operation", fields...)
}
