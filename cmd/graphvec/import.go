package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/graphvec"
)

func newImportCmd(flags *rootFlags) *cobra.Command {
	var (
		file string
		into string
	)
	cmd := &cobra.Command{
		Use:   "import [dir]",
		Short: "Import GraphRAG parquet output",
		Long: `Import every known GraphRAG parquet file (relationships, text_units, entities,
communities, community_reports) from a directory, or a single file with --file and --type.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (file != "") {
				return fmt.Errorf("pass either a directory or --file")
			}
			var t graphvec.CollectionType
			if file != "" {
				var err error
				if t, err = graphvec.ParseCollectionType(into); err != nil {
					return err
				}
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

			if _, err := client.InitCollections(cmd.Context()); err != nil {
				return err
			}

			if file != "" {
				n, err := client.ImportParquetFile(cmd.Context(), file, t)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", file, n)
				return err
			}

			counts, err := client.ImportParquetDir(cmd.Context(), args[0])
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", name, counts[name])
			}
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "single parquet file to import")
	cmd.Flags().StringVar(&into, "type", "", "collection type for --file")
	return cmd
}
