package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"foodcart/internal/api"
)

// newAssignCmd runs one assignment pass over the active orders and prints it
// as JSON, the same document GET /v1/orders/assignments returns.
func newAssignCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "assign",
		Short: "Compute restaurant assignments for all active orders and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := f.setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			s, err := api.NewServer(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := s.Assignments(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}
