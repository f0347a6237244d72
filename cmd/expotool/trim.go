package main

import (
	"path/filepath"

	"github.com/apex/log"
	"github.com/expo/exphost/internal/bundlecache"
	"github.com/spf13/cobra"
)

// trimSubcommand expires stale entries from the bundle cache.
func trimSubcommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trim",
		Short: "Expire stale bundle cache entries",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cache := bundlecache.New(filepath.Join(expotoolHomeDir(), "bundles"))
			cache.Trim()
			log.Info("bundle cache trimmed")
		},
	}
}
