package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"pairsbot/config"
	"pairsbot/internal/adapters/binanceclient"
	"pairsbot/internal/adapters/journal"
	"pairsbot/internal/adapters/logger"
	"pairsbot/internal/app"
	"pairsbot/internal/execution"
	"pairsbot/internal/position"
	"pairsbot/internal/reconcile"
	"pairsbot/internal/sizing"
	"pairsbot/internal/spread"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Trade Journal (Database Adapter)
	tradeJournal, err := journal.NewStore(journal.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade journal")
		log.Fatalf("FATAL: Failed to initialize trade journal: %v", err) // Also log to stderr
	}
	defer func() {
		if err := tradeJournal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade journal")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 5. Initialize Sizing and Spread Statistics
	sizer, err := sizing.NewSizer(cfg.BudgetPerLeg)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position sizer")
		log.Fatalf("FATAL: Failed to initialize position sizer: %v", err)
	}
	quantizer := sizing.NewQuantizer(cfg.LotRules)

	calculator, err := spread.New(spread.Config{
		SymbolA:   cfg.SymbolA,
		SymbolB:   cfg.SymbolB,
		Window:    cfg.RollingWindow,
		Capacity:  cfg.BufferCapacity,
		Sizer:     sizer,
		Quantizer: quantizer,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize spread calculator")
		log.Fatalf("FATAL: Failed to initialize spread calculator: %v", err)
	}

	// 6. Initialize Execution and Reconciliation
	coordinator, err := execution.New(execution.Config{
		Exchange:  binanceClient,
		Journal:   tradeJournal,
		Quantizer: quantizer,
		Logger:    appLogger,
		SymbolA:   cfg.SymbolA,
		SymbolB:   cfg.SymbolB,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize order coordinator")
		log.Fatalf("FATAL: Failed to initialize order coordinator: %v", err)
	}

	reconciler, err := reconcile.New(reconcile.Config{
		Exchange: binanceClient,
		Journal:  tradeJournal,
		Logger:   appLogger,
		SymbolA:  cfg.SymbolA,
		SymbolB:  cfg.SymbolB,
		Window:   cfg.ReconcileWindow,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize PnL reconciler")
		log.Fatalf("FATAL: Failed to initialize PnL reconciler: %v", err)
	}

	// 7. Initialize Engine
	engine, err := app.NewEngine(app.Config{
		Cfg:         cfg,
		Logger:      appLogger,
		Exchange:    binanceClient,
		Journal:     tradeJournal,
		Calculator:  calculator,
		Tracker:     position.NewTracker(),
		Coordinator: coordinator,
		Reconciler:  reconciler,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading engine")
		log.Fatalf("FATAL: Failed to initialize trading engine: %v", err)
	}

	// 8. Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLogger.Info(context.Background(), "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		engine.Stop()
	}()

	// 9. Start the Engine
	if err := engine.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Trading engine exited with error")
		log.Fatalf("FATAL: Trading engine exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
