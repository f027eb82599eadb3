package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lamco/wayland-rdp-server/internal/egfx"
	"github.com/lamco/wayland-rdp-server/internal/profile"
)

var showCapabilitiesCmd = &cobra.Command{
	Use:   "show-capabilities",
	Short: "Print the detected compositor profile and negotiable EGFX capability versions",
	Run: func(cmd *cobra.Command, args []string) {
		showCapabilities()
	},
}

func showCapabilities() {
	comp := profile.Probe()

	fmt.Printf("Compositor:         %s\n", comp.Compositor.String())
	fmt.Printf("Recommended capture: %s\n", comp.RecommendedCapture.String())
	fmt.Printf("Recommended buffer:  %s\n", comp.RecommendedBufferType.String())
	fmt.Printf("Damage hints:        %v\n", comp.SupportsDamageHints)
	fmt.Printf("Explicit sync:       %v\n", comp.SupportsExplicitSync)
	fmt.Printf("Recommended FPS cap: %d\n", comp.RecommendedFPSCap)

	if len(comp.Quirks) == 0 {
		fmt.Println("Quirks:              none")
	} else {
		fmt.Println("Quirks:")
		for _, q := range comp.Quirks {
			fmt.Printf("  - %s: %s\n", q.ID, q.Description)
		}
	}

	fmt.Println()
	fmt.Println("EGFX capability preference order:")
	fmt.Printf("  1. V8.1 (0x%08x) + AVC420_ENABLED\n", egfx.CapsVersion81)
	fmt.Printf("  2. V10.4-10.7 (0x%08x-0x%08x)\n", egfx.CapsVersion104, egfx.CapsVersion107)
	fmt.Println("  3. first advertised entry")

	if comp.HasQuirk(profile.QuirkAvc444Unreliable) {
		fmt.Println()
		fmt.Println("Note: this compositor is flagged avc444-unreliable; AVC420 will be forced regardless of client capability.")
	}
}
