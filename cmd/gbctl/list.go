package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"globalblock/internal/api/dto"
)

var (
	listType   string
	listExpiry string
	listLimit  int
	listBefore string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active federation-wide blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if listType != "" {
			query.Set("type", listType)
		}
		if listExpiry != "" {
			query.Set("expiry", listExpiry)
		}
		if listLimit > 0 {
			query.Set("limit", strconv.Itoa(listLimit))
		}
		if listBefore != "" {
			query.Set("before", listBefore)
		}

		var page dto.BlockPage
		if err := apiGet("/api/blocks", query, &page); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTARGET\tTYPE\tEXPIRY\tPERFORMER\tREASON")
		for _, row := range page.Blocks {
			flags := ""
			if row.AnonOnly {
				flags = " (anon-only)"
			}
			if row.LocallyDisabled {
				flags += " (disabled here)"
			}
			fmt.Fprintf(w, "#%d\t%s%s\t%s\t%s\t%s\t%s\n",
				row.ID, row.Target, flags, row.TargetType, row.Expiry, row.Performer, row.Reason)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if page.NextBefore != "" {
			fmt.Printf("\nmore: gbctl list --before %s\n", page.NextBefore)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "Filter by target type: ip, range or account")
	listCmd.Flags().StringVar(&listExpiry, "expiry", "", "Filter by expiry bucket: temporary or indefinite")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Page size")
	listCmd.Flags().StringVar(&listBefore, "before", "", "Creation-time cursor from a previous page")
}
