package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localdex/hybridsearch/internal/search"
)

func newQueryCmd() *cobra.Command {
	var k int

	c := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a hybrid search query against the document store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.retriever.Search(cmd.Context(), search.Request{
				Query: strings.Join(args, " "),
				K:     k,
			})
			if err != nil {
				return err
			}

			if len(resp.Hits) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, hit := range resp.Hits {
				fmt.Printf("%d. [%.3f] %s (doc=%s)\n   %s\n", i+1, hit.Score, hit.Title, hit.DocID, hit.Snippet)
			}
			fmt.Printf("(%dms)\n", resp.TookMs)
			return nil
		},
	}

	c.Flags().IntVarP(&k, "limit", "k", 10, "maximum number of results")
	return c
}
