package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"snapbak/internal/app"
	"snapbak/internal/config"
)

var (
	verbosity int
	noColor   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newApp merges config-file defaults with the persistent flags and
// builds the per-run App.
func newApp(cmd *cobra.Command) (*app.App, *config.Config, error) {
	cfg := config.Default()
	if path, err := config.DefaultPath(); err == nil {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	v := cfg.Verbosity
	if cmd.Flags().Changed("verbose") {
		v = verbosity
	}
	color := cfg.NoColor
	if cmd.Flags().Changed("no-color") {
		color = noColor
	}

	return app.New(v, color), cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "snapbak",
	Short: "Simple backup software",
	Long: "snapbak captures files and folders into timestamped snapshots\n" +
		"stored under a backup folder. Snapshots are incremental by default:\n" +
		"content already present in an earlier snapshot is referenced, not\n" +
		"copied again.",
	SilenceUsage: true,
}

var backupCmd = &cobra.Command{
	Use:   "backup BACKUP INPUT...",
	Short: "Make a backup of your files",
	Long: "Creates a snapshot of the INPUT files and folders under the BACKUP\n" +
		"folder. Every snapshot is incremental by default and based on the\n" +
		"latest snapshot found in the backup folder; --full forces copying\n" +
		"every file even when it is already present in another snapshot.",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		full, _ := cmd.Flags().GetBool("full")
		name, err := a.RunBackup(args[0], args[1:], full)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created snapshot: %s\n", name)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list [BACKUP]",
	Aliases: []string{"ls"},
	Short:   "List all snapshots",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd)
		if err != nil {
			return err
		}
		root := cfg.Root
		if len(args) == 1 {
			root = args[0]
		}
		short, _ := cmd.Flags().GetBool("short")
		return a.ListSnapshots(cmd.OutOrStdout(), root, short)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check SNAPSHOT",
	Short: "Check the integrity of a snapshot",
	Long: "Verifies the internal consistency of the snapshot at the given\n" +
		"path: its name, its index file, and the agreement between indexed\n" +
		"entries and physically stored files. The first problem found is\n" +
		"reported.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}
		return a.CheckSnapshot(cmd.OutOrStdout(), args[0])
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		if err := config.Init(path, config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase log verbosity (-v for steps, -vv for every file)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored log output")

	backupCmd.Flags().Bool("full", false, "force creating a full snapshot")
	listCmd.Flags().BoolP("short", "s", false,
		"print only basic information about snapshots in a short format")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(backupCmd, listCmd, checkCmd, configCmd)
}
