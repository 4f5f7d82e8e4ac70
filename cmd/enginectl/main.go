// Command enginectl drives a DuplexEngine from the command line: it opens
// the configured audio devices, loads a reference (and optionally a vocal)
// track, and runs a record or review session until interrupted.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vocalign/duplexengine/internal/config"
)

var (
	cfgFile string
	logger  = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "enginectl"})
)

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Control the duplex record/review audio engine",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: OS user config dir)")
	rootCmd.PersistentFlags().Int("input-device", -1, "input device index (-1: default)")
	rootCmd.PersistentFlags().Int("output-device", -1, "output device index (-1: default)")
	rootCmd.PersistentFlags().Int("sample-rate", 0, "engine sample rate override")
	rootCmd.PersistentFlags().Int("channels", 0, "output channel count override")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(reviewCmd)
}

func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			logger.Warn("failed to read config file, using defaults merged with flags", "file", cfgFile, "err", err)
		} else {
			if v := viper.GetInt("input_device_id"); viper.IsSet("input_device_id") {
				cfg.InputDeviceID = v
			}
			if v := viper.GetInt("output_device_id"); viper.IsSet("output_device_id") {
				cfg.OutputDeviceID = v
			}
			if v := viper.GetInt("engine_sample_rate"); viper.IsSet("engine_sample_rate") {
				cfg.EngineSampleRate = v
			}
			if v := viper.GetInt("engine_channels"); viper.IsSet("engine_channels") {
				cfg.EngineChannels = v
			}
		}
	}

	flags := cmd.Flags()
	if flags.Changed("input-device") {
		cfg.InputDeviceID, _ = flags.GetInt("input-device")
	}
	if flags.Changed("output-device") {
		cfg.OutputDeviceID, _ = flags.GetInt("output-device")
	}
	if flags.Changed("sample-rate") {
		cfg.EngineSampleRate, _ = flags.GetInt("sample-rate")
	}
	if flags.Changed("channels") {
		cfg.EngineChannels, _ = flags.GetInt("channels")
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
