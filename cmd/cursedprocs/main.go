package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"cursedprocs/internal/config"
)

var flagConfigFilePath string // value of --config flag

func main() {
	rootCmd.Flags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is $HOME/.config/cursedprocs/config.toml")
	config.RegisterFlags(rootCmd.Flags())

	// never print messages, the terminal may be in the alternate screen
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("cursedprocs failed", "err", err)
		fmt.Fprintf(os.Stderr, "cursedprocs: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cursedprocs [flags] CATALOG",
	Short: "Run groups of commands in parallel and watch their output",
	Long: `cursedprocs reads a CSV catalog of group,name,command records and runs the
commands with per-group and total concurrency limits, showing the latest
output line of each in the terminal.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of cursedprocs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("cursedprocs: version info not available")
			return
		}

		fmt.Printf("cursedprocs: %s\n", info.Main.Version)
		fmt.Printf("go:          %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:      %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:        %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:       %s\n", s.Value)
			}
		}
	},
}
