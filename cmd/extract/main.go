// Command extract runs one statement document through the extraction
// pipeline and prints the normalized positions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/statement-extractor/internal/domain/statement/processor"
	"github.com/FACorreiaa/statement-extractor/pkg/config"
)

func main() {
	var (
		format    = flag.String("format", "json", "output format: json or csv")
		delimiter = flag.String("delimiter", "", "override delimiter inference (single character)")
		encoding  = flag.String("encoding", "", "override encoding detection (utf-8, utf-16le, windows-1252)")
		timeout   = flag.Duration("timeout", 2*time.Minute, "processing timeout")
		verbose   = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: extract [flags] <statement-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Observability.MetricsEnabled {
		go serveMetrics(cfg.Observability.MetricsPort, logger)
	}

	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("cannot read input", slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}

	opts := processor.Options{PreferredEncoding: cfg.Processing.PreferredEncoding}
	if *encoding != "" {
		opts.PreferredEncoding = *encoding
	}
	if *delimiter != "" {
		opts.PreferredDelimiter = []rune(*delimiter)[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p := processor.New(cfg.Processing, logger)
	res, err := p.Process(ctx, data, filepath.Base(path), opts)
	if err != nil {
		logger.Error("processing failed", slog.Any("error", err))
		os.Exit(1)
	}

	switch *format {
	case "csv":
		err = processor.WritePositionsCSV(os.Stdout, res.Positions, res.Currency)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(res)
	default:
		err = fmt.Errorf("unknown output format %q", *format)
	}
	if err != nil {
		logger.Error("writing output failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func serveMetrics(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", slog.Any("error", err))
	}
}
