package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/app/provider"
	"token_farm/internal/app/service"
	"token_farm/internal/app/state"
	"token_farm/internal/infrastructure/artifactloader"
	"token_farm/internal/infrastructure/configloader"
	"token_farm/internal/infrastructure/httpclient"
	"token_farm/internal/infrastructure/metrics"
	clientprovider "token_farm/internal/infrastructure/network/client"
	"token_farm/internal/pkg/logger"
	"token_farm/internal/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const metricsNamespace = "tokenfarm"

var configPath string

// application holds everything built from the configuration.
type application struct {
	cfg            *configloader.Config
	zapLogger      *zap.Logger
	service        *service.TokenFarmServiceImpl
	metricsHandler http.Handler
}

func (a *application) close() {
	a.service.Close()
	_ = a.zapLogger.Sync()
}

func newApplication() (*application, error) {
	cfg, err := configloader.Load(configPath)
	if err != nil {
		return nil, err
	}

	zapLogger, err := logger.NewZap(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	logger.InitFromZap(zapLogger)
	appLogger := logger.NewSlogAdapter()

	var (
		m              port.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		pm := metrics.NewPrometheusMetrics(metricsNamespace)
		m, metricsHandler = pm, pm.HTTPHandler()
	} else {
		m = metrics.NewNopMetrics()
	}

	store := state.NewStore(appLogger, m)

	var source port.ArtifactSource
	if cfg.Artifacts.BaseURL != "" {
		timeout := time.Duration(cfg.Artifacts.RequestTimeoutMillis) * time.Millisecond
		source = httpclient.NewArtifactClient(cfg.Artifacts.BaseURL, timeout, zapLogger)
	} else {
		source = artifactloader.NewArtifactLoader(cfg.Artifacts.Dir, logger.Info, logger.Warn)
	}
	descriptors := provider.NewDescriptorProvider(source, cfg.Contracts.ArtifactNames(), appLogger)

	connector := clientprovider.NewConnector(clientprovider.NewConfigEnvironment(cfg.Provider), cfg.Provider, zapLogger)
	registry := service.NewContractRegistry(store, appLogger)
	synchronizer := service.NewBalanceSynchronizer(store, cfg.BalanceSync, cfg.Contracts.Decimals, m, appLogger)
	bootstrapper := service.NewBootstrapper(connector, descriptors, store, registry, synchronizer, m, appLogger)

	return &application{
		cfg:            cfg,
		zapLogger:      zapLogger,
		service:        service.NewTokenFarmService(bootstrapper, synchronizer, store, cfg.Transactions, m, appLogger),
		metricsHandler: metricsHandler,
	}, nil
}

// startApplication builds the application and runs the startup sequence.
func startApplication(ctx context.Context) (*application, error) {
	app, err := newApplication()
	if err != nil {
		return nil, err
	}
	if err := app.service.Start(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tokenfarm",
		Short:         "Stake tokens into a token farm through an injected wallet provider",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", utils.GetEnv("CONFIG_PATH", "config/config.yml"), "path to the YAML configuration file")

	root.AddCommand(newServeCmd(), newBalancesCmd(), newStakeCmd(), newUnstakeCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
