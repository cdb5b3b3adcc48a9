// Package cmd implements the regraft command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tallgren/regraft/internal/config"
	"github.com/tallgren/regraft/internal/confirm"
	"github.com/tallgren/regraft/internal/logging"
	"github.com/tallgren/regraft/internal/pipeline"
)

var rootCmd = &cobra.Command{
	Use:   "regraft",
	Short: "Rebase the GH200 fork onto upstream and reapply its patch sequence",
	Long: `Regraft rebases a GH200 fork onto a named upstream reference and
reapplies the fixed sequence of seven patch units, with verification
gates before, during, and after.

The pipeline verifies preconditions, records a backup branch, resets the
work branch to upstream, applies each patch in order, and runs the
validation scripts. Invoke with --rollback to restore the most recently
recorded backup instead.`,
	Args:          cobra.NoArgs,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is .regraft.yaml or $XDG_CONFIG_HOME/regraft/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.Flags().Bool("rollback", false, "restore the most recent backup instead of running the pipeline")
	rootCmd.Flags().Bool("skip-tests", false, "skip the validation stage (logged, not silent)")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".regraft")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("REGRAFT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., REGRAFT_UPSTREAM_REF for upstream.ref
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func run(cmd *cobra.Command, args []string) error {
	rollback, _ := cmd.Flags().GetBool("rollback")
	skipTests, _ := cmd.Flags().GetBool("skip-tests")
	if rollback && skipTests {
		return fmt.Errorf("--rollback and --skip-tests are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	repoDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Paths.ResolveStateDir(repoDir), cfg.Logging.Level)
		if err != nil {
			return err
		}
	}
	defer func() { _ = logger.Close() }()

	confirmer, err := confirm.NewTerminalConfirmer()
	if err != nil {
		return err
	}

	p := pipeline.New(repoDir, cfg, logger, confirmer, cmd.OutOrStdout())
	if rollback {
		return p.Rollback()
	}
	return p.Run(pipeline.Options{SkipTests: skipTests})
}
