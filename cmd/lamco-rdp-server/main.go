// Command lamco-rdp-server is the Wayland-native RDP server's entry
// point: a cobra CLI exposing `run` plus the diagnostic subcommands
// named in §1d/§6 (show-capabilities, persistence-status,
// clear-tokens, grant-permission, diagnose).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lamco/wayland-rdp-server/internal/logging"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "lamco-rdp-server",
	Short: "Wayland-native RDP server",
	Long:  "lamco-rdp-server projects a Wayland session over RDP: AVC444/AVC420 H.264 video, EGFX graphics channel, clipboard bridge, and input forwarding.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lamco-rdp-server v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches $XDG_CONFIG_HOME/lamco-rdp-server)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCapabilitiesCmd)
	rootCmd.AddCommand(persistenceStatusCmd)
	rootCmd.AddCommand(clearTokensCmd)
	rootCmd.AddCommand(grantPermissionCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
