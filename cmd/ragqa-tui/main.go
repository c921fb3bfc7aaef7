package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragqa/internal/app"
	"ragqa/internal/logging"
	"ragqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, logPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragqa/config.yaml if not provided)")
	flag.StringVar(&logPath, "log", "", "Write logs to this file (logs are discarded otherwise)")
	flag.Parse()

	cfg, _, err := app.LoadConfig(cfgPath, os.Getenv)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// the terminal belongs to the UI
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, _ := logging.Setup(logOut, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, os.Getenv, logger)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer a.Close()

	snap, err := a.Load(ctx)
	if err != nil {
		log.Fatalf("load corpus failed: %v", err)
	}
	summary := fmt.Sprintf("%d units from %s, %s retrieval", snap.Len(), cfg.Corpus.Dir, cfg.Retrieval.Mode)

	timeout := time.Duration(cfg.Generator.MaxAttempts*(cfg.Generator.TimeoutSecs+cfg.Generator.RetryDelaySecs)) * time.Second
	m := tui.New(a.Service, summary, timeout)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
