package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"globalblock/internal/api/dto"
)

var (
	lookupAccount string
	lookupXFF     []string
	lookupTemp    bool
	lookupRight   string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup [ip]",
	Short: "Check whether a requester would be blocked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if len(args) == 1 {
			query.Set("ip", args[0])
		}
		if lookupAccount != "" {
			query.Set("account", lookupAccount)
		}
		if len(lookupXFF) > 0 {
			query.Set("xff", strings.Join(lookupXFF, ","))
		}
		if lookupTemp {
			query.Set("temp", "true")
		}
		if lookupRight != "" {
			query.Set("right", lookupRight)
		}

		var result dto.LookupResult
		if err := apiGet("/api/lookup", query, &result); err != nil {
			return err
		}

		if !result.Blocked {
			fmt.Println("not blocked")
			return nil
		}

		fmt.Printf("blocked by #%d (%s)\n", result.BlockID, result.Target)
		if result.MatchedViaXFF {
			fmt.Printf("matched forwarded address %s\n", result.MatchedIP)
		}
		fmt.Println(result.Message)
		return nil
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupAccount, "account", "", "Account name or id to check")
	lookupCmd.Flags().StringSliceVar(&lookupXFF, "xff", nil, "Forwarded-for hops, closest first")
	lookupCmd.Flags().BoolVar(&lookupTemp, "temp", false, "Treat the account as temporary")
	lookupCmd.Flags().StringVar(&lookupRight, "right", "", "Check a specific right: edit or createaccount")
}
