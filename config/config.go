package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pairsbot/internal/adapters/logger" // Import the logger package for LogLevel
	"pairsbot/internal/sizing"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Pair
	SymbolA string // e.g. "ETHUSDT"
	SymbolB string // e.g. "SOLUSDT"

	// Trading Parameters
	BudgetPerLeg        float64 // Dollar notional allocated to each leg
	RollingWindow       int     // W, rolling window for spread statistics
	BufferCapacity      int     // Price buffer retention; 0 means 10×W
	EntryZScore         float64
	ExitZScore          float64
	StopZScore          float64
	PartialExitFraction float64
	MaxHoldBars         int

	// Exchange lot-size filters per symbol
	LotRules map[string]sizing.LotRule

	// Scheduling
	TickInterval  time.Duration // Fixed iteration cadence
	KlineInterval string        // Kline interval used to seed the buffer

	// Failure handling
	FailureBackoffAfter int           // Consecutive failed iterations before backing off
	FailureBackoff      time.Duration // Extra wait once the threshold is hit

	// Shutdown
	CloseOnShutdown bool // Liquidate any open position before terminating

	// Reconciliation
	ReconcileWindow time.Duration

	// Journal
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Pair
	cfg.SymbolA = getEnv("SYMBOL_A", "ETHUSDT")
	cfg.SymbolB = getEnv("SYMBOL_B", "SOLUSDT")
	if cfg.SymbolA == "" || cfg.SymbolB == "" {
		errs = append(errs, "SYMBOL_A and SYMBOL_B must be set")
	}
	if cfg.SymbolA == cfg.SymbolB {
		errs = append(errs, "SYMBOL_A and SYMBOL_B must differ")
	}

	// Trading Parameters
	cfg.BudgetPerLeg, err = getEnvAsFloatRequired("BUDGET_PER_LEG", 4000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BUDGET_PER_LEG: %v", err))
	} else if cfg.BudgetPerLeg <= 0 {
		errs = append(errs, "BUDGET_PER_LEG must be positive")
	}

	cfg.RollingWindow, err = getEnvAsIntRequired("ROLLING_WINDOW", 48)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ROLLING_WINDOW: %v", err))
	} else if cfg.RollingWindow < 2 {
		errs = append(errs, "ROLLING_WINDOW must be at least 2")
	}

	cfg.BufferCapacity = getEnvAsInt("BUFFER_CAPACITY", 0)
	if cfg.BufferCapacity < 0 {
		errs = append(errs, "BUFFER_CAPACITY cannot be negative")
	}

	cfg.EntryZScore, err = getEnvAsFloatRequired("ENTRY_ZSCORE", 1.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ENTRY_ZSCORE: %v", err))
	}
	cfg.ExitZScore, err = getEnvAsFloatRequired("EXIT_ZSCORE", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EXIT_ZSCORE: %v", err))
	}
	cfg.StopZScore, err = getEnvAsFloatRequired("STOP_ZSCORE", 3.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_ZSCORE: %v", err))
	}

	// Threshold ordering guards the exit precedence semantics: running with
	// exit >= entry or stop <= entry is refused rather than tolerated.
	if cfg.EntryZScore <= 0 {
		errs = append(errs, "ENTRY_ZSCORE must be positive")
	}
	if cfg.ExitZScore <= 0 || cfg.ExitZScore >= cfg.EntryZScore {
		errs = append(errs, "EXIT_ZSCORE must be positive and less than ENTRY_ZSCORE")
	}
	if cfg.StopZScore <= cfg.EntryZScore {
		errs = append(errs, "STOP_ZSCORE must be greater than ENTRY_ZSCORE")
	}

	cfg.PartialExitFraction, err = getEnvAsFloatRequired("PARTIAL_EXIT_FRACTION", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PARTIAL_EXIT_FRACTION: %v", err))
	} else if cfg.PartialExitFraction <= 0 || cfg.PartialExitFraction > 1 {
		errs = append(errs, "PARTIAL_EXIT_FRACTION must be in (0, 1]")
	}

	cfg.MaxHoldBars, err = getEnvAsIntRequired("MAX_HOLD_BARS", 48)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_HOLD_BARS: %v", err))
	} else if cfg.MaxHoldBars <= 0 {
		errs = append(errs, "MAX_HOLD_BARS must be positive")
	}

	// Lot-size filters (defaults match Binance USDT-M ETHUSDT / SOLUSDT)
	stepA := getEnvAsFloat("LOT_STEP_A", 0.001)
	minA := getEnvAsFloat("LOT_MIN_A", 0.001)
	stepB := getEnvAsFloat("LOT_STEP_B", 1)
	minB := getEnvAsFloat("LOT_MIN_B", 1)
	if stepA <= 0 || minA <= 0 || stepB <= 0 || minB <= 0 {
		errs = append(errs, "lot step and minimum quantities must be positive")
	}
	cfg.LotRules = map[string]sizing.LotRule{
		cfg.SymbolA: {StepSize: stepA, MinQty: minA},
		cfg.SymbolB: {StepSize: stepB, MinQty: minB},
	}

	// Scheduling
	tickSeconds := getEnvAsInt("TICK_INTERVAL_SECONDS", 60)
	if tickSeconds <= 0 {
		errs = append(errs, "TICK_INTERVAL_SECONDS must be positive")
	}
	cfg.TickInterval = time.Duration(tickSeconds) * time.Second
	cfg.KlineInterval = getEnv("KLINE_INTERVAL", "1m")

	// Failure handling
	cfg.FailureBackoffAfter = getEnvAsInt("FAILURE_BACKOFF_AFTER", 5)
	if cfg.FailureBackoffAfter <= 0 {
		errs = append(errs, "FAILURE_BACKOFF_AFTER must be positive")
	}
	backoffSeconds := getEnvAsInt("FAILURE_BACKOFF_SECONDS", 300)
	if backoffSeconds < 0 {
		errs = append(errs, "FAILURE_BACKOFF_SECONDS cannot be negative")
	}
	cfg.FailureBackoff = time.Duration(backoffSeconds) * time.Second

	// Shutdown
	cfg.CloseOnShutdown = getEnvAsBool("CLOSE_ON_SHUTDOWN", true)

	// Reconciliation
	reconcileMinutes := getEnvAsInt("RECONCILE_WINDOW_MINUTES", 60)
	if reconcileMinutes <= 0 {
		errs = append(errs, "RECONCILE_WINDOW_MINUTES must be positive")
	}
	cfg.ReconcileWindow = time.Duration(reconcileMinutes) * time.Minute

	// Journal
	cfg.DBPath = getEnv("DB_PATH", "./data/pairsbot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
