package main

import (
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/hjson/hjson-go/v4"
	"github.com/joho/godotenv"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/analysistest"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/shutdown"
)

// sample is served for every uploaded job unless ANALYSIS_SAMPLE_FILE is set
var sample = map[string]any{
	"balance_sheet": map[string]any{
		"total_assets":      map[string]any{"2024": 1250000, "2023": 1100000, "2022": 990000},
		"total_liabilities": map[string]any{"2024": 610000, "2023": 640000, "2022": 600000},
		"equity":            map[string]any{"2024": 640000, "2023": 460000, "2022": 390000},
	},
	"income_statement": map[string]any{
		"revenue":    map[string]any{"2024": 2400000, "2023": 2150000, "2022": 2000000},
		"net_profit": map[string]any{"2024": 180000, "2023": 195000, "2022": 120000},
	},
	"ratios": map[string]any{
		"current_ratio":  map[string]any{"2024": 1.65, "2023": 1.5, "2022": 1.42},
		"debt_to_equity": map[string]any{"2024": 0.95, "2023": 1.39, "2022": 1.54},
		"net_margin":     map[string]any{"2024": 7.5, "2023": 9.07, "2022": 6.0},
	},
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	logger := logging.New(os.Getenv("LOG_LEVEL")).Named("fakeanalysis")
	defer func() { _ = logger.Sync() }()

	fake := analysistest.New()

	doc := any(sample)
	if path := os.Getenv("ANALYSIS_SAMPLE_FILE"); path != "" {
		loaded, err := loadSample(path)
		if err != nil {
			logger.Error("failed to load sample analysis", "path", path, "err", err)
			os.Exit(1)
		}
		doc = loaded
	}
	fake.UseSample(doc)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go shutdown.Graceful([]os.Signal{os.Interrupt, syscall.SIGTERM}, srv, 5*time.Second, logger)

	logger.Info("fake analysis service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("fake analysis service exited with error", "err", err)
		os.Exit(1)
	}
}

func loadSample(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := hjson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
