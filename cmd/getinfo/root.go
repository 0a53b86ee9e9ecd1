package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/config"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
)

var (
	cfgFile string

	// cfg is loaded once per invocation before any command runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "getinfo",
		Short: "Report directory sizes, file counts and type breakdowns",
		Long: `getinfo scans directory trees incrementally and reports recursive
subdirectory counts, file counts, total sizes and a per-extension breakdown.

A background daemon (getinfod) keeps scan results between invocations. Without
it, commands run an engine inside the CLI process.

Examples:
  getinfo scan                # Scan the current directory
  getinfo scan ~/src /var     # Scan several trees one after another
  getinfo scan --all --save   # Scan every root and save a snapshot
  getinfo show ~/src -o json  # Print what is known about a directory
  getinfo disable ~/src/.git  # Exclude a subtree from scanning
  getinfo daemon start        # Start the background daemon`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
		PersistentPostRun: func(*cobra.Command, []string) { _ = logging.Close() },
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/getinfo/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: pretty, plain, json, yaml")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "output JSON format")
	rootCmd.PersistentFlags().Bool("no-daemon", false, "bypass daemon, run the scanner in-process")
	rootCmd.PersistentFlags().Bool("no-tui", false, "disable the progress view")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("no_daemon", rootCmd.PersistentFlags().Lookup("no-daemon"))
	_ = viper.BindPFlag("no_tui", rootCmd.PersistentFlags().Lookup("no-tui"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// loadConfig reads the configuration and starts file logging. Console
// mirroring is enabled only in verbose mode.
func loadConfig(*cobra.Command, []string) error {
	var err error
	cfg, err = config.LoadFile(cfgFile)
	if err != nil {
		return err
	}

	logCfg, err := cfg.LoggingInit()
	if err != nil {
		return err
	}
	if getVerbose() {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		// logging is not worth failing a command over
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// outputFormat resolves the formatter name: --json, then --output, then the
// configured default.
func outputFormat() string {
	if viper.GetBool("json") {
		return "json"
	}
	if f := viper.GetString("output"); f != "" {
		return f
	}
	if cfg != nil && cfg.Output.Format != "" {
		return cfg.Output.Format
	}
	return config.DefaultOutputFormat
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printWarn prints a warning to stderr unless quiet.
func printWarn(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
