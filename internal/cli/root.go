package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/casecrawl/internal/model"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "casecrawl",
	Short: "casecrawl - resumable crawler for authenticated case portals",
	Long: `casecrawl logs into a case-management portal, enumerates its case list,
extracts the labeled tables of every case detail page and saves them as
JSON and CSV, one directory per case.

Runs are resumable: completed cases are recorded in a checkpoint file and
skipped by the next run. The login captcha is always solved by the operator.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for casecrawl.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("casecrawl v0.3.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.casecrawl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.casecrawl")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CASECRAWL_*
	viper.SetEnvPrefix("CASECRAWL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range []string{
		"username", "password",
		"portal.name", "portal.base_url",
		"crawl.output_dir", "crawl.item_delay",
		"http.requests_per_second", "http.http_proxy", "http.https_proxy",
		"log.level",
	} {
		_ = viper.BindEnv(key)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig overlays the config file and environment onto the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// setupLogging configures the global logger. Logs go to stderr so stdout stays clean.
func setupLogging() {
	level := viper.GetString("log.level")
	if level == "" {
		level = "info"
	}
	if verbose {
		level = "debug"
	}

	color := true
	if viper.IsSet("log.color") {
		color = viper.GetBool("log.color")
	}

	log.DefaultLogger = log.Logger{
		Level: log.ParseLevel(level),
		Writer: &log.ConsoleWriter{
			ColorOutput:    color,
			QuoteString:    true,
			EndWithMessage: true,
			Writer:         os.Stderr,
		},
	}
}
