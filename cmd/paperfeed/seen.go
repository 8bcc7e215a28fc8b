// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperfeed/internal/seen"
)

var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "Inspect the delivery history",
	Long: `Seen prints the paper IDs that earlier runs delivered. These IDs are
suppressed from every future report. With --count only the total is
printed.`,
	RunE: runSeen,
}

func init() {
	seenCmd.Flags().Bool("count", false, "print only the number of delivered papers")

	rootCmd.AddCommand(seenCmd)
}

func runSeen(cmd *cobra.Command, args []string) error {
	setConfigDefaults()

	store, err := seen.Open(viper.GetString("seen_db"))
	if err != nil {
		return fmt.Errorf("opening seen store: %w", err)
	}
	defer store.Close()

	if countOnly, _ := cmd.Flags().GetBool("count"); countOnly {
		fmt.Println(store.Len())
		return nil
	}
	for _, id := range store.List() {
		fmt.Println(id)
	}
	return nil
}
