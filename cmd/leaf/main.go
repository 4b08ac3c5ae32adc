package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sguzman/lantern-leaf-sub000/internal/action"
	"github.com/sguzman/lantern-leaf-sub000/internal/app"
	"github.com/sguzman/lantern-leaf-sub000/internal/client"
	"github.com/sguzman/lantern-leaf-sub000/internal/config"
	"github.com/sguzman/lantern-leaf-sub000/internal/engine"
	"github.com/sguzman/lantern-leaf-sub000/internal/fence"
	"github.com/sguzman/lantern-leaf-sub000/internal/library"
	"github.com/sguzman/lantern-leaf-sub000/internal/logging"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	configPath := flag.String("config", "lantern-leaf.yaml", "path to config file")
	baseURL := flag.String("url", "", "engine base URL; empty runs the engine in-process")
	token := flag.String("token", "", "engine auth token")
	libraryDir := flag.String("library", "", "library directory for embedded mode")
	logFile := flag.String("log", "", "log file path")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Client.URL = *baseURL
	}
	if *token != "" {
		cfg.Client.Token = *token
	}
	if *libraryDir != "" {
		cfg.Library.Dir = *libraryDir
	}

	// The terminal belongs to the renderer; logs always go to a file.
	output := *logFile
	if output == "" {
		output = cfg.Log.Output
		if output == "" || output == "stderr" || output == "stdout" {
			output = "lantern-leaf.log"
		}
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
		Output:    output,
		Component: "tui",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := state.NewStore()
	fc := fence.New(store, log)

	var feed app.EventFeed
	var gw action.Gateway

	if cfg.Client.URL == "" {
		// Embedded mode: the engine lives in this process and the feed is a
		// channel, so the app code is identical to remote mode.
		recents, err := library.OpenStore(ctx, cfg.Library.DBPath())
		if err != nil {
			log.Warn("recents store unavailable, positions will not persist",
				"path", cfg.Library.DBPath(), "err", err)
			recents = nil
		} else {
			defer recents.Close() //nolint:errcheck
		}

		local := client.NewLocal()
		eng := engine.New(engine.Options{
			LibraryDir:     cfg.Library.Dir,
			Recents:        recents,
			Voices:         cfg.Speech.OrderedVoices(),
			DefaultRate:    cfg.Speech.Rate,
			StatsInterval:  time.Duration(cfg.Engine.StatsInterval),
			RescanDebounce: time.Duration(cfg.Library.RescanDebounce),
			Version:        version,
		}, local, log)
		go eng.Run(ctx) //nolint:errcheck

		feed, gw = local, eng
		log.Info("running embedded engine", "library", cfg.Library.Dir)
	} else {
		feed = client.NewFeed(deriveWSURL(cfg.Client.URL), cfg.Client.Token)
		gw = client.NewRemote(cfg.Client.URL, cfg.Client.Token)
		log.Info("connecting to engine", "url", cfg.Client.URL)
	}

	co := action.New(store, gw, nil, log)

	m := app.New(feed, co, store, fc)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deriveWSURL converts http://host:port → ws://host:port/ws.
func deriveWSURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return "ws://127.0.0.1:8391/ws"
	}
	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host)
}
