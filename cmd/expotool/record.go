package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/apex/log"
	"github.com/expo/exphost/internal/kvstore"
	"github.com/expo/exphost/internal/manifeststore"
	"github.com/expo/exphost/internal/runtimex"
	"github.com/spf13/cobra"
)

// recordSubcommand dumps the stored record for an experience URL.
func recordSubcommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record URL",
		Short: "Show the stored record for an experience URL",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			kvs, err := kvstore.NewFS(filepath.Join(expotoolHomeDir(), "state"))
			if err != nil {
				log.Fatalf("cannot open state directory: %s", err.Error())
			}
			store := manifeststore.New(kvs)
			rec, err := store.ExperienceRecord(args[0])
			if err != nil {
				log.Fatalf("no record for %s: %s", args[0], err.Error())
			}
			data, err := json.MarshalIndent(rec, "", "  ")
			runtimex.PanicOnError(err, "json.MarshalIndent")
			fmt.Printf("%s\n", string(data))
		},
	}
}
