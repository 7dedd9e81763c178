package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MellowMango/apartment-search-sub005/internal/adapter"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List configured site adapters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry, err := adapter.LoadRegistry(cfg.Adapters.RulesPath)
		if err != nil {
			return err
		}
		formatAdapters(os.Stdout, registry.Adapters())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}

func formatAdapters(out io.Writer, adapters []*adapter.Adapter) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tHOST PATTERNS\tFIELDS")
	for _, a := range adapters {
		patterns := strings.Join(a.HostPatterns, ", ")
		if patterns == "" {
			patterns = "(fallback)"
		}
		fields := strings.Join(a.FieldNames(), ", ")
		if fields == "" {
			fields = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, patterns, fields)
	}
	_ = w.Flush()
}
