package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/expo/exphost/internal/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// historySubcommand lists the recently opened experiences.
func historySubcommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently opened experiences",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			db, err := history.Open(filepath.Join(expotoolHomeDir(), "history.sqlite3"))
			if err != nil {
				log.Fatalf("cannot open history database: %s", err.Error())
			}
			defer db.Close()
			records, err := db.RecentExperiences(limit)
			if err != nil {
				log.Fatalf("cannot list recent experiences: %s", err.Error())
			}
			bold := color.New(color.Bold)
			okColor := color.New(color.FgGreen)
			failColor := color.New(color.FgRed)
			for _, rec := range records {
				status := okColor.Sprint("ok")
				if rec.Error != "" {
					status = failColor.Sprint("failed")
				}
				fmt.Printf("%s %s %s (sdk %s, %s) %s\n",
					rec.LaunchedAt.Format(time.RFC3339),
					status,
					bold.Sprint(rec.ExperienceURL),
					rec.SDKVersion,
					rec.Origin,
					rec.ManifestName,
				)
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of experiences to list")
	return cmd
}
