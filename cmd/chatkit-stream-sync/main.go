// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command chatkit-stream-sync receives Chatkit webhooks and replays them
// against a Stream Chat app so both platforms hold the same users, channels,
// memberships and messages during a migration.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.mau.fi/util/exzerolog"
	flag "maunium.net/go/mauflag"

	"github.com/aiku/chatkit-stream-sync/pkg/connector"
	"github.com/aiku/chatkit-stream-sync/pkg/connector/chatkit"
	"github.com/aiku/chatkit-stream-sync/pkg/connector/streamchat"
)

const (
	Name        = "chatkit-stream-sync"
	Description = "A Chatkit to Stream Chat webhook sync service"
	Version     = "0.1.0"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath = flag.MakeFull("c", "config", "The path to your config file.", "config.yaml").String()
var writeExampleConfig = flag.MakeFull("e", "generate-example-config", "Save the example config to the config path and quit.", "false").Bool()
var dontSaveConfig = flag.MakeFull("n", "no-update", "Don't save updated config to disk.", "false").Bool()
var version = flag.MakeFull("v", "version", "View version and quit.", "false").Bool()
var wantHelp, _ = flag.MakeHelpFlag()

func main() {
	flag.SetHelpTitles(
		fmt.Sprintf("%s - %s", Name, Description),
		fmt.Sprintf("%s [-hevn] [-c <path>]", Name),
	)
	if err := flag.Parse(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(10)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *version {
		fmt.Printf("%s %s (tag %s, commit %s, built %s)\n", Name, Version, Tag, Commit, BuildTime)
		os.Exit(0)
	} else if *writeExampleConfig {
		if err := os.WriteFile(*configPath, []byte(connector.ExampleConfig), 0600); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "Failed to write example config:", err)
			os.Exit(11)
		}
		fmt.Println("Wrote example config to", *configPath)
		os.Exit(0)
	}

	cfg, err := connector.LoadConfig(*configPath, !*dontSaveConfig)
	if err != nil {
		var cfgErr *connector.ConfigError
		if errors.As(err, &cfgErr) {
			_, _ = fmt.Fprintln(os.Stderr, "Configuration is incomplete:", err)
			os.Exit(12)
		}
		_, _ = fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(11)
	}

	log, err := cfg.Logging.Compile()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(12)
	}
	exzerolog.SetupDefaults(log)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}
	source, err := chatkit.NewClient(cfg.Chatkit.InstanceLocator, cfg.Chatkit.Key, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Chatkit client")
	}
	if cfg.Chatkit.BaseURL != "" {
		source.BaseURL = cfg.Chatkit.BaseURL
	}
	dest, err := streamchat.New(cfg.Stream.APIKey, cfg.Stream.APISecret, cfg.Stream.BaseURL, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Stream client")
	}

	sc := connector.NewSyncConnector(cfg, source, dest, *log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", Version).
		Str("commit", Commit).
		Msg("Starting sync service")
	if err := sc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Sync service stopped with error")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("Sync service stopped")
}
