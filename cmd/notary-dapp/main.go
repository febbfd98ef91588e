package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/config"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/database"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/dispatch"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/documents"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/hostsim"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/logging"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/metrics"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/rollup"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notary-dapp",
		Short: "Document notary rollup application",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDApp(cmd.Context())
		},
		SilenceUsage: true,
	}

	hostsimCmd := &cobra.Command{
		Use:   "hostsim",
		Short: "Run an in-process rollup host for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHostSim(cmd.Context())
		},
	}

	setupFlags(rootCmd, hostsimCmd)
	rootCmd.AddCommand(hostsimCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(rootCmd, hostsimCmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&cfgFile, "config", "", "Path to configuration file")
	persistent.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	bindFlag(persistent, "log.level", "log-level")

	flags := rootCmd.Flags()
	flags.String("rollup-url", "", "Rollup host HTTP URL (overrides ROLLUP_HTTP_SERVER_URL)")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.Bool("in-memory-fallback", defaults.GetBool("database.in_memory_fallback"), "Use an in-memory database when the path cannot be opened")
	flags.Int("cache-size", defaults.GetInt("cache.size"), "Document lookup cache entries (0 disables)")
	flags.String("metrics-address", defaults.GetString("metrics.address"), "Prometheus listen address (empty disables)")
	bindFlag(flags, "rollup.http_server_url", "rollup-url")
	bindFlag(flags, "database.path", "database-path")
	bindFlag(flags, "database.in_memory_fallback", "in-memory-fallback")
	bindFlag(flags, "cache.size", "cache-size")
	bindFlag(flags, "metrics.address", "metrics-address")

	simFlags := hostsimCmd.Flags()
	simFlags.String("address", defaults.GetString("hostsim.address"), "Host simulator listen address")
	simFlags.Duration("poll-wait", defaults.GetDuration("hostsim.poll_wait"), "How long an idle finish call waits for input")
	bindFlag(simFlags, "hostsim.address", "address")
	bindFlag(simFlags, "hostsim.poll_wait", "poll-wait")
}

func bindFlag(flags *pflag.FlagSet, key, flag string) {
	if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runDApp(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, "notary-dapp")
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := openDatabase(appConfig, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sqliteStore, err := documents.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	if count, err := sqliteStore.Count(ctx); err == nil {
		logger.Info("document store ready", zap.Int64("documents", count))
	} else {
		logger.Warn("failed to count documents", zap.Error(err))
	}
	store, err := documents.NewCachedStore(sqliteStore, appConfig.CacheSize)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	notaryService, err := documents.NewService(documents.ServiceConfig{
		Store:      store,
		Clock:      time.Now,
		IDProvider: documents.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Service: notaryService,
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		return err
	}

	host, err := rollup.NewHTTPHost(appConfig.RollupURL, nil)
	if err != nil {
		return err
	}

	driver, err := rollup.NewDriver(rollup.DriverConfig{
		Host:    host,
		Handler: dispatcher,
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if appConfig.MetricsAddress != "" {
		metricsServer := startMetricsServer(appConfig.MetricsAddress, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("notary application starting", zap.String("rollup_url", appConfig.RollupURL))
	return driver.Run(signalCtx)
}

func openDatabase(appConfig config.AppConfig, logger *zap.Logger) (*gorm.DB, error) {
	if !appConfig.InMemoryFallback {
		return database.OpenSQLite(appConfig.DatabasePath, logger)
	}
	db, inMemory, err := database.OpenWithFallback(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	if inMemory {
		logger.Warn("notarized documents will not survive a restart")
	}
	return db, nil
}

func startMetricsServer(address string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server starting", zap.String("address", address))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return metricsServer
}

func runHostSim(ctx context.Context) error {
	simConfig, err := config.LoadHostSim(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(simConfig.LogLevel, "hostsim")
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	gin.SetMode(gin.ReleaseMode)
	handler, err := hostsim.NewHTTPHandler(hostsim.Dependencies{
		Simulator: hostsim.NewSimulator(simConfig.PollWait),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    simConfig.Address,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("host simulator starting", zap.String("address", simConfig.Address))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
