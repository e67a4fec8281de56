package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gobeaver/netfs"
	"github.com/gobeaver/netfs/factory"
)

var (
	// Global flags
	registryFile string
	logLevel     string
	envPrefix    string
	readOnly     bool
)

// rootCmd starts the interactive shell
var rootCmd = &cobra.Command{
	Use:   "netfs [url]",
	Short: "Interactive client for local, FTP, SFTP, SMB and S3 file systems",
	Long: `netfs - one command set for every storage backend.

The URL selects the backend by scheme: file, ftp, sftp, smb, cifs or s3.
Anything without a known scheme is treated as a local path.

Backend options are read from the environment (BEAVER_NETFS_*), for example
BEAVER_NETFS_SFTP_PASSWORD or BEAVER_NETFS_S3_REGION.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runShell,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryFile, "registry", "", "YAML scheme table (default: built-in table)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&envPrefix, "env-prefix", "", "environment variable prefix (default BEAVER_)")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "read-only", false, "reject uploads, deletes and renames")
}

func loadSettings() *netfs.Settings {
	var (
		settings *netfs.Settings
		err      error
	)
	if envPrefix != "" {
		settings, err = netfs.LoadSettings(envPrefix)
	} else {
		settings, err = netfs.GetSettings()
	}
	if err != nil {
		netfs.Logger().Warn("settings not loaded, using defaults", "error", err)
		settings = netfs.DefaultSettings()
	}
	if registryFile != "" {
		settings.RegistryFile = registryFile
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	return settings
}

func runShell(cmd *cobra.Command, args []string) error {
	settings := loadSettings()
	netfs.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: netfs.ParseLevel(settings.LogLevel),
	})))

	table := factory.DefaultTable()
	if settings.RegistryFile != "" {
		table = factory.LoadTableFile(settings.RegistryFile)
	}

	sh := NewShell(factory.NewRegistry(settings, table), cmd.InOrStdin(), cmd.OutOrStdout())
	sh.ReadOnly = readOnly
	defer sh.Close()

	ctx := cmd.Context()
	if len(args) > 0 {
		sh.Exec(ctx, "connect "+args[0])
	}
	return sh.Run(ctx)
}
