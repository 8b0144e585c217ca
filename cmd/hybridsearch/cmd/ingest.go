package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a file into the document store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.IngestPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ingested %s: docId=%s chunks=%d skipped=%d (%dms)\n",
				args[0], res.DocID, res.Chunks, res.Skipped, res.TookMs)
			return nil
		},
	}
}
