package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/tatami-systems/tatami/internal/simulator"
)

// Default configuration constants.
const (
	defaultRounds       = 3
	defaultRoundSeconds = 120
	defaultAssessors    = 5
	defaultExchanges    = 8
	defaultTimeout      = 30 * time.Second
	defaultSimTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:8090", "Base URL of the service")
		matchID      = flag.String("id", "", "Match id to admit (default: generated)")
		rounds       = flag.Int("rounds", defaultRounds, "Scheduled rounds")
		roundSeconds = flag.Int("round-seconds", defaultRoundSeconds, "Scheduled round duration in seconds")
		assessors    = flag.Int("assessors", defaultAssessors, "Size of the assessor panel")
		exchanges    = flag.Int("exchanges", defaultExchanges, "Scoring exchanges attempted per round")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed         = flag.Int64("seed", 0, "RNG seed; 0 picks one from the clock")
		logFile      = flag.String("log", "", "Log file for simulator output (default: sim_log_TIMESTAMP.log)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	// Setup logging
	if err := simulator.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	defer cancel()

	// Create simulation configuration
	config := &simulator.Config{
		BaseURL:      *baseURL,
		MatchID:      *matchID,
		Rounds:       *rounds,
		RoundSeconds: *roundSeconds,
		Assessors:    *assessors,
		Exchanges:    *exchanges,
		Timeout:      *timeout,
		Seed:         *seed,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	// Run the simulation
	if err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
