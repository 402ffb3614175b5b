package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/config"
)

// RootOptions holds global flags and the configuration they resolve to.
type RootOptions struct {
	ConfigFile string
	Format     string // "text" | "json"

	Config config.Config
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the portunus-monitor command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "portunus-monitor",
		Short: "Badge and face access monitor",
		Long: `Turns QR badge and face detections from a camera into a strictly
alternating Entry/Exit log per registered identity.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigFile)
			if err != nil {
				return err
			}
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML config file (default ./portunus.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMonitorCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewIdentitiesCommand(opts))
	cmd.AddCommand(NewNextCommand(opts))

	return cmd
}
