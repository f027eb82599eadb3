package main

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/lamco/wayland-rdp-server/internal/tokenstore"
)

var persistenceStatusCmd = &cobra.Command{
	Use:   "persistence-status",
	Short: "Print the detected deployment context and the token store backend it selects",
	Run: func(cmd *cobra.Command, args []string) {
		persistenceStatus()
	},
}

func persistenceStatus() {
	deployment := tokenstore.DetectDeployment()
	fmt.Printf("Deployment context: %s\n", deployment.Context.String())
	fmt.Printf("Linger enabled:     %v\n", deployment.LingerEnabled)

	conn, err := dbus.SessionBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to session bus: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	store := tokenstore.Select(conn, deployment)
	fmt.Printf("Token store method:     %s\n", store.Method().String())
	fmt.Printf("Token store encryption: %s\n", store.Encryption().String())
}
