package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/spf13/cobra"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported output formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FORMAT\tCONTENT TYPE")
			for _, f := range synthesis.Formats() {
				ct, _ := synthesis.ContentType(f)
				fmt.Fprintf(w, "%s\t%s\n", f, ct)
			}
			return w.Flush()
		},
	}
}
