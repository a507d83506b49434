package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/beacon/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:     "start",
	Aliases: []string{"serve"},
	Short:   "Start the Beacon daemon service",
	Long: `Start the Beacon daemon service in the foreground.
The daemon serves the HTTP API and the push channel until it receives
SIGINT or SIGTERM, then writes a final snapshot and exits.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := cfg.PIDFile()
	if isRunning(pidFile) {
		return fmt.Errorf("daemon is already running (PID file: %s)", pidFile)
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}

	if err := d.Start(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Beacon listening on %s\n", d.Status().Addr)
	d.Wait()
	return nil
}

// isRunning reports whether pidFile names a live process
func isRunning(pidFile string) bool {
	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		return false
	}
	return daemon.ProcessRunning(pid)
}
