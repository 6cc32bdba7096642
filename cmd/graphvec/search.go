package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/graphvec"
)

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var (
		limit  int
		hybrid bool
	)
	cmd := &cobra.Command{
		Use:   "search <type[,type...]|all> <query>",
		Short: "Search collections by text",
		Long: `Search one collection, several collections or all of them. With several
collections the results are grouped per collection unless --hybrid merges them.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypeList(args[0])
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

			var out any
			switch {
			case hybrid:
				out, err = client.HybridSearch(cmd.Context(), types, args[1], limit)
			case len(types) == 1:
				out, err = client.SearchByText(cmd.Context(), types[0], args[1], limit)
			default:
				out, err = client.SearchMultipleCollections(cmd.Context(), types, args[1], limit)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(printable(out))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results per collection")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "merge results across collections by distance")
	return cmd
}

// parseTypeList accepts "all" or a comma-separated list of collection types.
func parseTypeList(s string) ([]graphvec.CollectionType, error) {
	if s == "all" {
		return graphvec.AllCollectionTypes(), nil
	}
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no collection types in %q", s)
	}
	return parseTypes(names)
}

// outcomeJSON renders a failed collection's error as text.
type outcomeJSON struct {
	Hits  []graphvec.Hit `json:"hits"`
	Error string         `json:"error,omitempty"`
}

// hybridJSON renders failed collections of a merged search as text.
type hybridJSON struct {
	Hits   []graphvec.Hit                     `json:"hits"`
	Failed map[graphvec.CollectionType]string `json:"failed,omitempty"`
}

func printable(v any) any {
	switch v := v.(type) {
	case graphvec.MultiResult:
		out := make(map[graphvec.CollectionType]outcomeJSON, len(v))
		for t, o := range v {
			row := outcomeJSON{Hits: o.Hits}
			if o.Err != nil {
				row.Error = o.Err.Error()
			}
			out[t] = row
		}
		return out
	case graphvec.HybridResult:
		out := hybridJSON{Hits: v.Hits}
		for t, err := range v.Failed {
			if out.Failed == nil {
				out.Failed = make(map[graphvec.CollectionType]string, len(v.Failed))
			}
			out.Failed[t] = err.Error()
		}
		return out
	default:
		return v
	}
}
