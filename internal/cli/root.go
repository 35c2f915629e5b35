// Package cli wires the command-line surface: the root sync run and the
// interactive source-account login.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/scalesync/internal/config"
	"github.com/dmitrijs2005/scalesync/internal/logging"
	"github.com/dmitrijs2005/scalesync/internal/syncer"
)

// NewRootCmd builds the command tree. The root command runs the sync
// pipeline for every configured user.
func NewRootCmd() *cobra.Command {
	var (
		configPath  string
		limit       int
		generateFIT bool
		doSync      bool
		outputDir   string
		snapshotDir string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:           "scalesync",
		Short:         "Sync smart-scale weight data to Garmin Connect",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			log := logging.NewDefault(cmd.ErrOrStderr(), level)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store.ApplyEnvOverlay(ctx, log)

			users := store.Users()
			if len(users) == 0 {
				fmt.Fprintf(out, "No users found in %s. Please add users to the configuration file.\n", configPath)
				if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
					if err := config.WriteTemplate(configPath); err != nil {
						return err
					}
					fmt.Fprintf(out, "Created template %s\n", configPath)
				}
				return nil
			}

			opts := syncer.Options{
				Limit:       limit,
				GenerateFIT: generateFIT,
				Sync:        doSync,
				OutputDir:   outputDir,
				SnapshotDir: snapshotDir,
			}
			orch := syncer.New(store, opts, log, out)
			sum := orch.Run(ctx, users)

			if sum.ExitCode() != 0 {
				return fmt.Errorf("no users processed successfully (%d failed)", sum.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "users.json", "path to the users configuration file")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of records to display")
	cmd.Flags().BoolVar(&generateFIT, "fit", false, "generate FIT files for Garmin")
	cmd.Flags().BoolVar(&doSync, "sync", false, "upload weight data to Garmin Connect (implies --fit)")
	cmd.Flags().StringVar(&outputDir, "output-dir", filepath.Join("data", "garmin-fit"), "directory for generated FIT files")
	cmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "data", "directory for per-user weight snapshots")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostic logging")

	cmd.AddCommand(newLoginCmd())
	return cmd
}
