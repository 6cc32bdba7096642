package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init [type...]",
		Short: "Create missing collections (all by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypes(args)
			if err != nil {
				return err
			}
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			created, err := client.InitCollections(cmd.Context(), types...)
			if err != nil {
				return err
			}
			for _, t := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d collections created\n", len(created))
			return nil
		},
	}
}

func newResetCmd(flags *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset [type...]",
		Short: "Drop and recreate collections, deleting their records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes every record; pass --yes to confirm")
			}
			types, err := parseTypes(args)
			if err != nil {
				return err
			}
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.ResetCollections(cmd.Context(), types...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "collections reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [type...]",
		Short: "Show record counts per collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypes(args)
			if err != nil {
				return err
			}
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			stats, err := client.Stats(cmd.Context(), types...)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tCOLLECTION\tRECORDS")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", s.Type, s.Name, s.Count)
			}
			return tw.Flush()
		},
	}
}
