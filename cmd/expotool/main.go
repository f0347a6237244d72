// Command expotool inspects and maintains the on-disk state written by
// exphost: the launch history, the experience records, and the bundle
// cache.
package main

import (
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/expo/exphost/internal/runtimex"
	"github.com/spf13/cobra"
)

// homeDirFlag is the value of the --home persistent flag.
var homeDirFlag string

// expotoolHomeDir returns the home directory honoring --home.
func expotoolHomeDir() string {
	if homeDirFlag != "" {
		return homeDirFlag
	}
	base, err := os.UserHomeDir()
	runtimex.PanicOnError(err, "os.UserHomeDir")
	return filepath.Join(base, ".exphost")
}

func main() {
	root := &cobra.Command{
		Use:   "expotool",
		Short: "Tool for inspecting and maintaining exphost state",
	}
	verbose := root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&homeDirFlag, "home", "", "force specific home directory")
	root.AddCommand(historySubcommand())
	root.AddCommand(trimSubcommand())
	root.AddCommand(recordSubcommand())

	cobra.OnInitialize(func() {
		log.Log = &log.Logger{Level: log.InfoLevel, Handler: newLogHandler(os.Stderr)}
		if *verbose {
			log.SetLevel(log.DebugLevel)
		}
	})

	err := root.Execute()
	runtimex.PanicOnError(err, "root.Execute")
}
