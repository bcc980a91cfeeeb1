package main

import (
	"github.com/spf13/cobra"

	"globalblock/internal/api/dto"
)

var localStatusReason string

var localDisableCmd = &cobra.Command{
	Use:   "local-disable <target>...",
	Short: "Disable a global block on this wiki only",
	Long:  `The block stays active everywhere else in the federation. Accepts "-" for stdin bulk mode.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachTarget(args, func(target string) error {
			return commandOutcome("/api/local-disable", dto.LocalStatusCommand{
				Target: target,
				Reason: localStatusReason,
			}, target)
		})
	},
}

var localEnableCmd = &cobra.Command{
	Use:   "local-enable <target>...",
	Short: "Re-enable a locally disabled global block",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return forEachTarget(args, func(target string) error {
			return commandOutcome("/api/local-enable", dto.LocalStatusCommand{
				Target: target,
				Reason: localStatusReason,
			}, target)
		})
	},
}

func init() {
	localDisableCmd.Flags().StringVarP(&localStatusReason, "reason", "r", "", "Reason recorded for the override")
	localEnableCmd.Flags().StringVarP(&localStatusReason, "reason", "r", "", "Reason recorded for the removal")
}
