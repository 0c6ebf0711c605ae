/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/longkey1/securechat/internal/config"
	scerrors "github.com/longkey1/securechat/internal/errors"
	"github.com/longkey1/securechat/internal/logging"
	"github.com/longkey1/securechat/internal/secure"
)

var (
	cfgFile string
	verbose bool

	logger      = logging.Nop()
	signalsOnce sync.Once
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "securechat",
	Short: "A chat completions CLI that keeps secrets in locked memory",
	Long: `securechat sends chat messages to an OpenAI-compatible chat completions API.
The API key, endpoint and every message body are held in memory that is locked
against swap and zeroed before it is released.
You can configure the tool using a TOML configuration file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	secure.Purge()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", scerrors.Suggest(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/securechat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// userConfigDir returns $HOME/.config/securechat.
func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "securechat"), nil
}

// initConfig builds the logger, installs the purge-on-signal handler and
// reads in the config file and ENV variables if set.
func initConfig() {
	var err error
	logger, err = logging.New(verbose)
	cobra.CheckErr(err)

	signalsOnce.Do(func() {
		memguard.CatchSignal(func(sig os.Signal) {
			logger.Warn("signal received, wiping secrets", zap.String("signal", sig.String()))
			secure.Purge()
			_ = logger.Sync()
		}, os.Interrupt, syscall.SIGTERM)
	})

	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := userConfigDir()
		cobra.CheckErr(err)

		// The first directory holding a config.toml wins
		viper.AddConfigPath(dir)
		viper.AddConfigPath("/etc/securechat")
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}

	logConfigLoaded(logger, viper.GetViper())
}

// logConfigLoaded reports where configuration came from. The endpoint and
// the key are never logged.
func logConfigLoaded(l *zap.Logger, v *viper.Viper) {
	l.Debug("configuration loaded",
		zap.String("config_file", v.ConfigFileUsed()),
		logging.Redacted("base_url"),
		zap.String("model", v.GetString("model")),
		zap.String("lock_policy", v.GetString("lock_policy")),
		logging.Redacted("api_key"))
}
