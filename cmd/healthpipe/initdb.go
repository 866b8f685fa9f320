package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kholm/healthpipe/internal/store"
)

func newInitDBCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the record tables and natural-key constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.CreateTables(ctx, pool); err != nil {
				return err
			}
			if err := store.VerifyNaturalKeys(ctx, pool); err != nil {
				return err
			}

			a.log.Info("schema ready")
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}
