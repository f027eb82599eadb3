package main

import (
	"context"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/lamco/wayland-rdp-server/internal/session"
	"github.com/lamco/wayland-rdp-server/internal/tokenstore"
)

var grantPermissionCmd = &cobra.Command{
	Use:   "grant-permission",
	Short: "Run the interactive portal authorization flow once and persist the restore token",
	Run: func(cmd *cobra.Command, args []string) {
		grantPermission()
	},
}

// grantPermission runs PortalTokenStrategy.CreateSession interactively
// (the compositor's consent dialog appears) so a restore token gets
// persisted, letting later `run` invocations skip the dialog per
// §4.K's portal_token retry/persist flow.
func grantPermission() {
	conn, err := dbus.SessionBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to session bus: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	deployment := tokenstore.DetectDeployment()
	store := tokenstore.Select(conn, deployment)

	strategy := session.NewPortalTokenStrategy(conn, store)
	if !strategy.Available(context.Background()) {
		fmt.Fprintln(os.Stderr, "portal is not available on this system")
		os.Exit(1)
	}

	fmt.Println("Requesting remote desktop/screen capture permission; check for a compositor consent dialog...")

	handle, err := strategy.CreateSession(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "authorization failed: %v\n", err)
		os.Exit(1)
	}
	defer handle.Close()

	fmt.Printf("Authorized. Restore token persisted to %s for future sessions.\n", store.Method().String())
}
