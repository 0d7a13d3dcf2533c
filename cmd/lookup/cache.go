package main

import (
	"fmt"

	"lookup-gateway/lookup/domain"

	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the local result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cached entries and their size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeCache, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()
			st := c.Stats(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\nsize: %d bytes\n", st.Count, st.SizeBytes)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeCache, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()
			c.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate <username>",
		Short: "Forget the cached search for one username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := domain.NormalizeUsername(args[0])
			if err != nil {
				return err
			}
			c, closeCache, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()
			c.Invalidate(cmd.Context(), username)
			fmt.Fprintln(cmd.OutOrStdout(), "invalidated", username)
			return nil
		},
	})
	return cmd
}
