package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dudk/plinth/log"
)

const envPrefix = "PLINTH"

// rootCommand creates the command tree. Every command gets its own viper
// instance so flags, environment and plinth.yaml are layered per run.
func rootCommand() *cobra.Command {
	v := viper.New()
	logger := log.GetLogger()

	root := &cobra.Command{
		Use:           "plinth",
		Short:         "Real-time audio task runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to config file (default ./plinth.yaml)")
	root.PersistentFlags().Bool("debug", false, "Enable debug output")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(v, cmd); err != nil {
			return err
		}
		if v.GetBool("debug") {
			logger.SetLevel(logrus.DebugLevel)
		}
		return nil
	}

	root.AddCommand(
		renderCommand(v, logger),
		probeCommand(),
	)
	return root
}

func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plinth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}
	return nil
}
