package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/config"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/llm"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/logger"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/orchestrator"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/personality"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/progress"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/rag"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/session"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/socketserver"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	configPath := flag.String("config", "", "path to the config file")
	datasetPath := flag.String("dataset", "", "path to the streaming history export (JSON)")
	listenAddr := flag.String("listen", "", "bridge listen address, e.g. 127.0.0.1:8181")
	prompt := flag.String("prompt", "", "answer one question on stdout and exit")
	logLevel := flag.String("log-level", "", "debug, info, warn, error or none")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *datasetPath != "" {
		cfg.DatasetPath = *datasetPath
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		logger.Global().Close()
	}()
	slog.SetDefault(slog.New(logger.NewSlogHandler(logger.Global())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var current atomic.Pointer[dataset.Dataset]
	snapshot := func() *dataset.Dataset { return current.Load() }

	if cfg.DatasetPath != "" {
		ds, loadErr := dataset.LoadFile(cfg.DatasetPath)
		if loadErr != nil {
			logger.Warn("could not load dataset from %s: %v", cfg.DatasetPath, loadErr)
			fmt.Fprintf(os.Stderr, "Warning: could not load dataset: %v\n", loadErr)
		} else {
			current.Store(ds)
			logger.Info("dataset loaded: %s (fingerprint %s)", ds.Summary(), ds.Fingerprint)
		}

		watcher, watchErr := dataset.NewWatcher(cfg.DatasetPath, func(ds *dataset.Dataset) {
			current.Store(ds)
		})
		if watchErr != nil {
			logger.Warn("dataset watching disabled: %v", watchErr)
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
		}
	}

	profile := func() string {
		if ds := snapshot(); ds != nil && ds.Len() > 0 {
			return personality.Classify(ds).Line()
		}
		return ""
	}
	registry, err := tools.DefaultRegistry(snapshot, profile)
	if err != nil {
		return fmt.Errorf("failed to build tool catalog: %w", err)
	}
	logger.Debug("tool catalog: %s", strings.Join(registry.Names(), ", "))

	client, err := llm.NewClient(cfg.Provider, cfg.Model, cfg.APIKey(cfg.Provider), cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	ctrl := orchestrator.NewController(cfg, client, registry, session.NewSession(), snapshot, rag.NewKeywordRetriever(snapshot))

	if *prompt != "" {
		return runOneShot(ctx, ctrl, *prompt)
	}

	server := socketserver.NewServer(cfg, ctrl, snapshot)
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	fmt.Printf("rhythm-chamber bridge listening on http://%s (provider: %s, model: %s)\n",
		server.Addr(), cfg.Provider, cfg.Model)

	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "\nShutting down...")
	return nil
}

// runOneShot answers a single question on stdout, with tool activity echoed
// to stderr.
func runOneShot(ctx context.Context, ctrl *orchestrator.Controller, prompt string) error {
	reply, err := ctrl.SendMessage(ctx, prompt, &orchestrator.Options{
		Progress: func(ev progress.Event) error {
			switch ev.Kind {
			case progress.KindToolStart:
				fmt.Fprintf(os.Stderr, "running %s...\n", ev.Tool)
			case progress.KindToolEnd:
				if ev.Err != "" {
					fmt.Fprintf(os.Stderr, "%s failed: %s\n", ev.Tool, ev.Err)
				}
			case progress.KindTokenWarning:
				fmt.Fprintf(os.Stderr, "note: %s\n", ev.Message)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	if reply.Aborted {
		return errors.New("aborted")
	}

	fmt.Println(reply.Content)
	return nil
}
