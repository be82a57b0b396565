package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fx-compliance-engine/cmd/fxcompliance/config"
	apperrors "fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"

	// appConfig is loaded once per invocation before any subcommand runs
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fxcompliance",
	Short: "FX compliance reconciliation engine",
	Long: `fxcompliance cross-checks customs declarations against foreign-exchange
records from financial institutions. It pairs records that describe the same
transaction, reports value, quantity and price discrepancies, classifies each
record as compliant, pending or flagged, and computes late-settlement penalties.

Examples:
  fxcompliance analyze --customs customs.csv --financial bank.csv
  fxcompliance analyze --combined records.json --output-format json --output-file report.json
  fxcompliance penalty --amount 10000 --received 4000 --days-late 10
  fxcompliance resolve set --entity Acme --date 2023-05-15 --type total --status resolved
  fxcompliance serve --addr :8080`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	err := rootCmd.Execute()
	return NewCLIErrorHandler().HandleError(err)
}

func init() {
	config.SetDefaults(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (optional)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.String("state-db", "", "SQLite file holding resolution state and the audit log")

	viper.BindPFlag("verbose", flags.Lookup("verbose"))
	viper.BindPFlag(config.KeyStateDB, flags.Lookup("state-db"))
}

// initConfig reads the config file and environment, then sets up logging
func initConfig(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "config", cfgFile, err).
				WithSuggestion("check the config file path and syntax")
		}
	}

	v.SetEnvPrefix("FXCOMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Flags without a viper default only override when given.
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		v.Set(config.KeyLogLevel, level)
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		v.Set(config.KeyLogFormat, format)
	}
	if v.GetBool("verbose") {
		v.Set(config.KeyLogLevel, string(logger.DebugLevel))
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "log", cfg.Log.Output, err)
	}
	logger.SetGlobalLogger(log)

	if v.ConfigFileUsed() != "" {
		log.WithField("file", v.ConfigFileUsed()).Debug("using config file")
	}

	appConfig = cfg
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
