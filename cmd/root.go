// Copyright © 2018 The ELPS authors

package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "v8bridge",
	Short: "Debug a V8 script runtime over its debug port",
	Long: `v8bridge attaches to a V8-based runtime (node --debug) listening on a
debug port and drives it through the legacy V8 debugger protocol.

Getting started:
  node --debug=5858 app.js           Start the debuggee
  v8bridge scripts                   List the scripts it has loaded
  v8bridge attach --repl             Open a debugger console
  v8bridge attach --break app.js:12  Pause at a line and report hits

Settings are read from flags, V8BRIDGE_* environment variables and the
config file ($HOME/.v8bridge.yaml), in that order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		renderFault(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.v8bridge.yaml)")
	flags.String("host", defaultHost, "debuggee host")
	flags.Int("port", defaultPort, "debuggee debug port")
	flags.String("ws-url", "", "reach the debug port through a WebSocket proxy at this URL instead of TCP")
	flags.Duration("request-timeout", defaultRequestTimeout, "how long to wait for each debuggee response")
	flags.Duration("connect-timeout", defaultConnectTimeout, "how long to wait for the connection and handshake")
	flags.String("source-root", "", "directory holding local copies of the debuggee's scripts")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", `log format: "text" or "json"`)
	flags.String("telemetry", "none", `trace requests: "none", "otel" or "opencensus"`)
	flags.String("color", "auto", `Control colored output: "auto", "always", or "never".`)
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search config in home directory with name ".v8bridge" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".v8bridge")
	}

	viper.SetEnvPrefix("V8BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// A missing config file is fine; a broken one is reported once the
	// logger exists.
	configErr = nil
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			configErr = err
		}
	}
}
