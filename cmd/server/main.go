package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"fundraise/internal/api"
	"fundraise/internal/blockchain/evm"
	"fundraise/internal/config"
	"fundraise/internal/database"
	"fundraise/internal/page"
	"fundraise/internal/service"
	"fundraise/internal/wallet"
	"fundraise/internal/worker"

	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Fundraise Playground")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("chain_id", cfg.Chain.ChainID),
		zap.String("fundraise_address", cfg.Chain.FundraiseAddress),
		zap.Bool("wallet_connected", cfg.Wallet.Connected()),
		zap.Bool("ledger_enabled", cfg.Database.Enabled()))

	// Connect to the chain
	client, err := evm.NewClient(&cfg.Chain, cfg.Wallet.PrivateKey, logger)
	if err != nil {
		logger.Fatal("Failed to create EVM client", zap.Error(err))
	}
	defer client.Close()

	checkChain(client, cfg, logger)

	fundraise, err := evm.NewFundraise(client, common.HexToAddress(cfg.Chain.FundraiseAddress), logger)
	if err != nil {
		logger.Fatal("Failed to bind Fundraise contract", zap.Error(err))
	}

	injected := wallet.New(fundraise, cfg.Chain.StartBlock)

	// Submission ledger (optional)
	var (
		ledger      page.Ledger
		submissions api.SubmissionReader
	)
	if cfg.Database.Enabled() {
		db, err := database.Connect(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		logger.Info("Database connected successfully")

		if err := database.RunMigrations(context.Background(), db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied successfully")

		submissionService := service.NewSubmissionService(db, logger)
		ledger = submissionService
		submissions = submissionService
	} else {
		logger.Info("Submission ledger disabled, DB_HOST not set")
	}

	contributionPage := page.New(injected, injected, ledger, logger)

	// Initialize API handlers
	apiHandler := api.NewHandler(contributionPage, submissions, api.PageInfo{
		ChainID:         cfg.Chain.ChainID,
		ChainName:       cfg.Chain.Name,
		Contract:        fundraise.Address().Hex(),
		Sender:          senderHex(fundraise),
		WalletConnected: fundraise.CanSign(),
	}, logger)
	router := api.SetupRouter(apiHandler, logger)

	// Create HTTP server. No write timeout: contributions are answered once mined.
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start HTTP server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", serverAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Background refresher (optional)
	var workerManager *worker.WorkerManager
	if cfg.Events.PollInterval > 0 {
		workerManager = worker.NewWorkerManager(contributionPage, cfg.Events.PollInterval, logger)
		workerManager.Start()
		logger.Info("Workers started")
	}

	logger.Info("Service initialized successfully",
		zap.String("status", "ready"),
		zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal("HTTP server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down service...")

	// Shutdown workers first
	if workerManager != nil {
		workerManager.Shutdown(10 * time.Second)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	if !apiHandler.Drain(30 * time.Second) {
		logger.Warn("Stopped with contributions still awaiting confirmation")
	}

	logger.Info("Service stopped successfully")
}

// checkChain warns when the node does not match the configuration
func checkChain(client *evm.Client, cfg *config.Config, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chainID, err := client.GetChainIDFromNetwork(ctx)
	if err != nil {
		logger.Warn("Failed to query chain ID", zap.Error(err))
		return
	}
	if chainID.String() != cfg.Chain.ChainID {
		logger.Warn("Chain ID mismatch",
			zap.String("configured", cfg.Chain.ChainID),
			zap.String("network", chainID.String()))
	}

	deployed, err := client.IsContractDeployed(ctx, common.HexToAddress(cfg.Chain.FundraiseAddress))
	if err != nil {
		logger.Warn("Failed to check Fundraise deployment", zap.Error(err))
		return
	}
	if !deployed {
		logger.Warn("No contract code at Fundraise address",
			zap.String("address", cfg.Chain.FundraiseAddress))
	}
}

func senderHex(f *evm.Fundraise) string {
	if !f.CanSign() {
		return ""
	}
	return f.Sender().Hex()
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
