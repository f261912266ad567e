// ABOUTME: Root command and CLI setup for the workflow execution engine
// ABOUTME: Configures global flags, subcommands, and application initialization

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ritualflow/engine/pkg/types"
	"github.com/ritualflow/engine/pkg/utils"
)

var (
	cfgFile      string
	verboseMode  bool
	quietMode    bool
	format       string
	workflowsDir string
	taskDefsFile string
	logger       types.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ritual",
	Short: "A declarative workflow orchestration execution engine",
	Long: `ritual executes declarative YAML workflows with:

• Dependency-ordered, parallel task execution
• A path-grammar template resolver (inputs, prior task outputs, env, forEach item/index)
• HTTP-backed task definitions with retry + circuit breaker protection
• Recursive workflowRef sub-workflow composition with cycle detection
• Content-hash workflow versioning
• Cron-triggered scheduled execution
• Dry-run planning and blast-radius impact analysis

Examples:
  ritual run billing --input-file input.json     Execute a workflow to completion
  ritual dry-run billing                         Show the rendered execution plan
  ritual validate billing                        Validate a registered workflow
  ritual serve --addr :8080                       Start the REST server
  ritual list-tasks                               List the registered task catalog
  ritual versions billing                         List recorded workflow versions
  ritual blast-radius http-call                   Show what depends on a task
  ritual trigger list                             List configured cron triggers`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ritual.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "enable quiet mode (only errors)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&workflowsDir, "workflows-dir", "./workflows", "workflow definition source (local path, s3://, sftp://, ssh://)")
	rootCmd.PersistentFlags().StringVar(&taskDefsFile, "task-defs", "", "path to a TaskDefinition catalog file (YAML or JSON)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("workflows-dir", rootCmd.PersistentFlags().Lookup("workflows-dir"))
	_ = viper.BindPFlag("task-defs", rootCmd.PersistentFlags().Lookup("task-defs"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ritual")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RITUAL")

	if err := viper.ReadInConfig(); err == nil && verboseMode {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// initLogger initializes the global logger based on flags.
func initLogger() {
	level := utils.InfoLevel
	if viper.GetBool("verbose") {
		level = utils.DebugLevel
	} else if viper.GetBool("quiet") {
		level = utils.ErrorLevel
	}

	if viper.GetString("format") == "json" {
		logger = utils.NewJSONLogger(level, os.Stderr)
	} else {
		logger = utils.NewLogger(level, os.Stderr)
	}
}

// GetLogger returns the global logger instance, initializing it on first use
// (e.g. for tests that call a command function directly without cobra's
// OnInitialize hook having run).
func GetLogger() types.Logger {
	if logger == nil {
		initLogger()
	}
	return logger
}
