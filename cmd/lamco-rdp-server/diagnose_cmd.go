package main

import (
	"context"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/lamco/wayland-rdp-server/internal/config"
	"github.com/lamco/wayland-rdp-server/internal/profile"
	"github.com/lamco/wayland-rdp-server/internal/session"
	"github.com/lamco/wayland-rdp-server/internal/tokenstore"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Print a combined compositor/session-strategy/token-store report",
	Run: func(cmd *cobra.Command, args []string) {
		diagnose()
	},
}

func diagnose() {
	fmt.Println("== Compositor profile ==")
	comp := profile.Probe()
	fmt.Printf("compositor: %s\n", comp.Compositor.String())
	if len(comp.Quirks) == 0 {
		fmt.Println("quirks:     none")
	}
	for _, q := range comp.Quirks {
		fmt.Printf("quirk:      %s (%s)\n", q.ID, q.Description)
	}

	fmt.Println()
	fmt.Println("== Token store ==")
	deployment := tokenstore.DetectDeployment()
	fmt.Printf("deployment: %s (linger=%v)\n", deployment.Context.String(), deployment.LingerEnabled)

	conn, err := dbus.SessionBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "session bus unavailable: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	store := tokenstore.Select(conn, deployment)
	fmt.Printf("token store: %s (%s)\n", store.Method().String(), store.Encryption().String())

	fmt.Println()
	fmt.Println("== Session strategies ==")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = config.Default()
	}

	ctx := context.Background()
	for _, name := range cfg.SessionStrategyOrder {
		var strategy session.Strategy
		switch name {
		case "portal":
			strategy = session.NewPortalTokenStrategy(conn, store)
		case "libei":
			strategy = session.NewLibeiStrategy(conn)
		case "wlr_direct":
			strategy = session.NewWlrDirectStrategy()
		case "headless_local":
			strategy = session.NewHeadlessLocalStrategy(cfg.HeadlessEnabled)
		default:
			fmt.Printf("%-16s unknown strategy name\n", name)
			continue
		}
		fmt.Printf("%-16s available=%v\n", strategy.Name(), strategy.Available(ctx))
	}
}
