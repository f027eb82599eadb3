package main

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/lamco/wayland-rdp-server/internal/tokenstore"
)

// portalRestoreTokenKey mirrors session.restoreTokenKey: the logical
// key the PortalTokenStrategy stores its restore token under. Kept in
// sync by hand since the session package does not export it.
const portalRestoreTokenKey = "default"

var clearTokensCmd = &cobra.Command{
	Use:   "clear-tokens",
	Short: "Delete any persisted portal restore token from the token store",
	Run: func(cmd *cobra.Command, args []string) {
		clearTokens()
	},
}

func clearTokens() {
	deployment := tokenstore.DetectDeployment()

	conn, err := dbus.SessionBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to session bus: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	store := tokenstore.Select(conn, deployment)
	if err := store.Delete(portalRestoreTokenKey); err != nil {
		fmt.Fprintf(os.Stderr, "failed to clear stored token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Cleared restore token from %s.\n", store.Method().String())
}
