package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftvault/internal/client"
	"github.com/openmined/syftvault/internal/client/config"
	"github.com/openmined/syftvault/internal/utils"
	"github.com/openmined/syftvault/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vault",
		Short:         "SyftVault encrypted file vault",
		Version:       version.Detailed(),
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringP("data-dir", "d", config.DefaultDataDir, "Vault data directory")
	rootCmd.PersistentFlags().StringP("server", "s", config.DefaultServerURL, "Vault server url")
	rootCmd.PersistentFlags().StringP("username", "u", "", "Account username")

	rootCmd.AddCommand(
		newInitCmd(),
		newKeyCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newDaemonCmd(),
		newLsCmd(),
		newCatCmd(),
		newNewCmd(),
		newWriteCmd(),
		newMvCmd(),
		newRenameCmd(),
		newRmCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	slog.SetDefault(slog.New(newConsoleHandler(os.Stderr, slog.LevelInfo)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", red.Render("ERROR"), err)
		os.Exit(1)
	}
}

func newConsoleHandler(w io.Writer, level slog.Level) slog.Handler {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    noColor,
	})
}

// loadConfig resolves the config from file, SYFTVAULT_* env and the persistent flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))
	v.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	v.BindPFlag("username", cmd.Flags().Lookup("username"))

	path, _ := cmd.Flags().GetString("config")
	if path == "" && cmd.Flags().Changed("data-dir") {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		path = dataDir + string(os.PathSeparator) + "config.json"
	}
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "_CONFIG_PATH")
	}
	return config.Load(v, path)
}

// setupLogging sends logs to the console and to a rotating file in the data dir
func setupLogging(cmd *cobra.Command, cfg *config.Config) (io.Closer, error) {
	if err := utils.EnsureParent(cfg.LogPath()); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.LogPath(),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	consoleHandler := newConsoleHandler(cmd.ErrOrStderr(), cfg.LogLevel())
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(consoleHandler, fileHandler)))
	return file, nil
}

// withClient opens the replica for the duration of fn
func withClient(cmd *cobra.Command, fn func(c *client.Client) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	logFile, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	c, err := client.Open(cfg)
	if err != nil {
		if errors.Is(err, client.ErrDataDirLocked) {
			return fmt.Errorf("%w (is the daemon running?)", err)
		}
		return err
	}
	defer func() {
		err = errors.Join(err, c.Close())
	}()
	return fn(c)
}
