package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"globalblock/internal/api/dto"
)

var (
	blockReason    string
	blockExpiry    string
	blockAnonOnly  bool
	blockAllowNew  bool
	blockAutoblock bool
	blockModify    bool
	unblockReason  string
)

var blockCmd = &cobra.Command{
	Use:   "block <target>...",
	Short: "Place or modify a federation-wide block",
	Long: `Place a federation-wide block on an IP, a CIDR range or an account.

Pass "-" as the only target to read targets from stdin, one per line;
every line gets the same flags and produces one result line. Lines
starting with // are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachTarget(args, func(target string) error {
			return commandOutcome("/api/block", dto.BlockCommand{
				Target:               target,
				Reason:               blockReason,
				Expiry:               blockExpiry,
				AnonOnly:             blockAnonOnly,
				AllowAccountCreation: blockAllowNew,
				EnableAutoblock:      blockAutoblock,
				Modify:               blockModify,
			}, target)
		})
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <target>...",
	Short: "Lift a federation-wide block",
	Long:  `Lift a block by target or by #<id>. Accepts "-" for stdin bulk mode.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachTarget(args, func(target string) error {
			return commandOutcome("/api/unblock", dto.UnblockCommand{
				Target: target,
				Reason: unblockReason,
			}, target)
		})
	},
}

func init() {
	blockCmd.Flags().StringVarP(&blockReason, "reason", "r", "", "Reason shown to affected requesters")
	blockCmd.Flags().StringVarP(&blockExpiry, "expiry", "e", "never", `Expiry: duration ("31h"), RFC 3339 timestamp or "never"`)
	blockCmd.Flags().BoolVar(&blockAnonOnly, "anon-only", false, "Only apply to unauthenticated requesters")
	blockCmd.Flags().BoolVar(&blockAllowNew, "allow-account-creation", false, "Leave signup open from the target")
	blockCmd.Flags().BoolVar(&blockAutoblock, "autoblock", false, "Derive IP blocks from the blocked account's actions")
	blockCmd.Flags().BoolVar(&blockModify, "modify", false, "Rewrite an existing block in place")

	unblockCmd.Flags().StringVarP(&unblockReason, "reason", "r", "", "Reason recorded for the removal")
}

// forEachTarget runs fn per target, switching to stdin when the sole target
// is "-". Bulk mode keeps going after per-target failures and reports how
// many failed at the end.
func forEachTarget(args []string, fn func(target string) error) error {
	targets := args
	if len(args) == 1 && args[0] == "-" {
		targets = nil
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "//") {
				continue
			}
			targets = append(targets, line)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading targets from stdin: %w", err)
		}
	}

	failed := 0
	for _, target := range targets {
		if err := fn(target); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(targets))
	}
	return nil
}
