package simulator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/tatami-systems/tatami/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "sim_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the match simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Tatami Match Simulator
======================

Drives a complete simulated match against a running Tatami instance:
admission, lifecycle control, assessor voting, judge events, and a final
scoreboard check.

Usage:
  go run cmd/tatami-sim/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8090")
  -id string
        Match id to admit (default: generated)
  -rounds int
        Scheduled rounds (default 3)
  -round-seconds int
        Scheduled round duration in seconds (default 120)
  -assessors int
        Size of the assessor panel (default 5)
  -exchanges int
        Scoring exchanges attempted per round (default 8)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed int
        RNG seed; 0 picks one from the clock
  -log string
        Log file for simulator output (default: sim_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate a match with default settings
  go run cmd/tatami-sim/main.go

  # Simulate a long match against a custom host
  go run cmd/tatami-sim/main.go -rounds 5 -exchanges 12 -url http://localhost:8080

  # Reproduce a prior run
  go run cmd/tatami-sim/main.go -seed 42 -log replay.log
`)
}
