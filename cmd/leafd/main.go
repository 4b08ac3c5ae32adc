package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/config"
	"github.com/sguzman/lantern-leaf-sub000/internal/engine"
	"github.com/sguzman/lantern-leaf-sub000/internal/library"
	"github.com/sguzman/lantern-leaf-sub000/internal/logging"
	"github.com/sguzman/lantern-leaf-sub000/internal/ws"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	configPath := flag.String("config", "lantern-leaf.yaml", "path to config file")
	host := flag.String("host", "", "override listen host")
	port := flag.Int("port", 0, "override listen port")
	libraryDir := flag.String("library", "", "override library directory")
	genToken := flag.Bool("gen-token", false, "generate an auth token and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}
	if *genToken {
		token, err := config.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Engine.Host = *host
	}
	if *port > 0 {
		cfg.Engine.Port = *port
	}
	if *libraryDir != "" {
		cfg.Library.Dir = *libraryDir
	}

	lvl, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		lvl = logging.LevelInfo
	}
	format := logging.FormatText
	if cfg.Log.Format == "json" {
		format = logging.FormatJSON
	}
	log, closeLog, err := logging.New(logging.Options{
		Level:     lvl,
		Format:    format,
		Output:    cfg.Log.Output,
		Component: "engine",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recents, err := library.OpenStore(ctx, cfg.Library.DBPath())
	if err != nil {
		log.Warn("recents store unavailable, positions will not persist",
			"path", cfg.Library.DBPath(), "err", err)
		recents = nil
	} else {
		defer recents.Close() //nolint:errcheck
	}

	feed := ws.NewBroadcaster(0, log)
	eng := engine.New(engine.Options{
		LibraryDir:     cfg.Library.Dir,
		Recents:        recents,
		Voices:         cfg.Speech.OrderedVoices(),
		DefaultRate:    cfg.Speech.Rate,
		StatsInterval:  time.Duration(cfg.Engine.StatsInterval),
		RescanDebounce: time.Duration(cfg.Library.RescanDebounce),
		Version:        version,
	}, feed, log)

	engDone := make(chan struct{})
	go func() {
		defer close(engDone)
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("engine stopped", "err", err)
		}
	}()

	server := ws.NewServer(eng, feed, cfg.Engine.Token, cfg.Engine.AllowedOrigins, log)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				cfg = reload(*configPath, cfg, log)
				continue
			}
			log.Info("shutting down", "signal", sig.String())
			cancel()
			feed.Stop()
			// Give the engine a moment to save the reading position.
			select {
			case <-engDone:
			case <-time.After(2 * time.Second):
			}
			os.Exit(0)
		}
	}()

	log.Info("engine listening",
		"addr", cfg.Engine.Addr(),
		"library", cfg.Library.Dir,
		"auth", cfg.Engine.Token != "",
		"version", version)
	if err := ws.ListenAndServe(cfg.Engine.Host, cfg.Engine.Port, mux); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}

// reload re-reads the config on SIGHUP. Only the log level applies live;
// everything else is logged so the operator knows a restart is needed.
func reload(path string, old *config.Config, log *slog.Logger) *config.Config {
	next, err := config.LoadOrDefault(path)
	if err != nil {
		log.Warn("config reload failed", "path", path, "err", err)
		return old
	}
	changes := config.Diff(old, next)
	if len(changes) == 0 {
		log.Info("config reload: no changes")
		return old
	}
	for _, change := range changes {
		log.Info("config changed", "change", change)
	}
	if next.Log.Level != old.Log.Level {
		if err := logging.SetLevelName(next.Log.Level); err != nil {
			log.Warn("bad log level in config", "level", next.Log.Level, "err", err)
		} else {
			log.Info("log level applied", "level", next.Log.Level)
		}
	}
	return next
}
