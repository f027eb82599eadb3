package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/lamco/wayland-rdp-server/internal/config"
	"github.com/lamco/wayland-rdp-server/internal/logging"
	"github.com/lamco/wayland-rdp-server/internal/profile"
	"github.com/lamco/wayland-rdp-server/internal/session"
	"github.com/lamco/wayland-rdp-server/internal/tokenstore"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

// runServer wires the ambient stack (config, logging) and the
// session strategy fabric, then creates one session and blocks until
// a shutdown signal. The RDP wire protocol and per-connection
// EGFX/video pipeline that would feed from the resulting
// session.Handle are external-collaborator surfaces this module stops
// short of (§1, Non-goals) — this command establishes and holds the
// session a connection handler would otherwise be given.
func runServer() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	log = logging.L("main")

	log.Info("starting lamco-rdp-server", "version", version, "listen", cfg.ListenAddress)

	comp := profile.Probe()
	log.Info("compositor profile detected",
		"compositor", comp.Compositor.String(),
		"quirkCount", len(comp.Quirks),
	)

	conn, err := dbus.SessionBus()
	if err != nil {
		log.Error("failed to connect to session bus", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	deployment := tokenstore.DetectDeployment()
	store := tokenstore.Select(conn, deployment)
	log.Info("token store selected", "method", store.Method().String(), "encryption", store.Encryption().String())

	fabric := buildFabric(cfg, conn, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := fabric.CreateSession(ctx)
	if err != nil {
		log.Error("no session strategy succeeded", "error", err)
		os.Exit(1)
	}
	defer handle.Close()

	log.Info("session established", "strategy", handle.Type().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
}

// buildFabric orders strategies per cfg.SessionStrategyOrder, skipping
// names it does not recognize. Whether a strategy can actually run is
// left to its Available check inside the fabric.
func buildFabric(cfg *config.Config, conn *dbus.Conn, store tokenstore.Store) *session.Fabric {
	var strategies []session.Strategy
	for _, name := range cfg.SessionStrategyOrder {
		switch name {
		case "portal":
			strategies = append(strategies, session.NewPortalTokenStrategy(conn, store))
		case "libei":
			strategies = append(strategies, session.NewLibeiStrategy(conn))
		case "wlr_direct":
			strategies = append(strategies, session.NewWlrDirectStrategy())
		case "headless_local":
			strategies = append(strategies, session.NewHeadlessLocalStrategy(cfg.HeadlessEnabled))
		}
	}
	return session.NewFabric(strategies...)
}
