package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "register NAME CATEGORY CODE",
		Short:   "Register an identity and write its QR badge",
		Example: `  portunus-monitor register "Ana Lopez" staff ABC123`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.events.RegisterIdentity(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (id=%d) badge=%s\n", id.Code, id.ID, id.BadgeRef)
			return nil
		},
	}
}

func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print the access log, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.events.ListEvents(cmd.Context())
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if rows == nil {
					rows = []types.EventRow{}
				}
				return writeJSON(out, rows)
			}
			for _, r := range rows {
				fmt.Fprintf(out, "%s  %-5s  %-10s  %-6s  %s\n",
					r.Event.OccurredAt.Format(types.TimestampLayout), r.Event.Kind.Label(),
					r.Identity.Code, r.Event.Channel, r.Identity.Name)
			}
			return nil
		},
	}
}

func NewIdentitiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identities",
		Short: "List registered identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.events.ListIdentities(cmd.Context())
			if err != nil {
				return fmt.Errorf("list identities: %w", err)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if ids == nil {
					ids = []types.Identity{}
				}
				return writeJSON(out, ids)
			}
			for _, id := range ids {
				fmt.Fprintf(out, "%d  %-10s  %-10s  %s\n", id.ID, id.Code, id.Category, id.Name)
			}
			return nil
		},
	}
}

func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next CODE",
		Short: "Show whether the next detection of CODE records Entry or Exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.events.FindByCode(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("find %s: %w", args[0], err)
			}
			next, err := a.toggle.NextEvent(cmd.Context(), id.ID)
			if err != nil {
				return fmt.Errorf("next event: %w", err)
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"code": id.Code, "next": next})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s next: %s\n", id.Code, next.Label())
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
