package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ppiankov/retracite/internal/logging"
	"github.com/ppiankov/retracite/internal/model"
)

// Version is the retracite release
const Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "retracite",
	Short: "Retracite - labeled dataset of post-retraction citations",
	Long: `Retracite builds a balanced dataset of citations made after the cited
article was retracted, labeled by whether the citing authors acknowledged
the retraction ("knowing") or not ("unknowing").

Unknowing citations carry only a sentence; retracite locates the paragraph
the sentence came from in the citing article's PubMed Central NXML. Knowing
citations carry an annotated context and are used as-is.

The output is a feature table with min-max normalized year columns, ready
for training a classifier.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// command; completed checkpoints stay on disk for --resume-from.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "retracite v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.retracite/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	registerDefaults(viper.GetViper(), model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".retracite"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// RETRACITE_DATASET_SIZE overrides dataset.size
	viper.SetEnvPrefix("RETRACITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, environment and bound flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the command logger from the loaded config
func newLogger(cfg *model.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("version", Version)), nil
}

// showProgress reports whether progress bars should be drawn
func showProgress(cfg *model.Config) bool {
	return cfg.Resolve.Progress && term.IsTerminal(int(os.Stderr.Fd()))
}

// bindFlag binds a command flag to a config key, so the flag only wins when set
func bindFlag(cmd *cobra.Command, flag, key string) {
	_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
}
