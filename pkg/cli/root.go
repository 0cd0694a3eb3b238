// pkg/cli/root.go
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bstardust/photo-ingest/internal/config"
	"github.com/bstardust/photo-ingest/internal/logger"
)

// viperKey is the flag annotation naming the configuration key a flag
// overrides.
const viperKey = "viper_key"

// rootOptions is shared by every command. cfg is loaded once the command
// line is parsed.
type rootOptions struct {
	configFile string
	v          *viper.Viper
	cfg        *config.Config
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interruption signals
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("Error executing command: %v", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "photo-ingest",
		Short:         "Store photos with their location",
		Long:          `Strips EXIF metadata from photos, resolves where they were taken through Mapbox and AMap, and stores them in S3-compatible storage with a searchable record.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Config file (yaml, toml or json)")
	bindFlag(flags, "log-level", "log.level", "info", "Log level (debug, info, warn, error)")
	bindFlag(flags, "log-format", "log.format", "console", "Log format (console, json)")

	// Add commands
	rootCmd.AddCommand(
		newServeCommand(opts),
		newIngestCommand(opts),
		newLocateCommand(opts),
		newStripCommand(),
		newDeleteCommand(opts),
	)
	return rootCmd
}

// load binds the flags of the running command and reads the configuration.
func (o *rootOptions) load(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[viperKey]; len(keys) > 0 && bindErr == nil {
			bindErr = o.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return err
	}
	logger.Configure(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)
	o.cfg = cfg
	return nil
}

// bindFlag declares a string flag overriding the configuration key.
func bindFlag(flags *pflag.FlagSet, name, key, value, usage string) {
	flags.String(name, value, usage)
	_ = flags.SetAnnotation(name, viperKey, []string{key})
}

func annotate(flags *pflag.FlagSet, name, key string) {
	_ = flags.SetAnnotation(name, viperKey, []string{key})
}
