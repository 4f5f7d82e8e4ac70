package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vocalign/duplexengine/engine"
	"github.com/vocalign/duplexengine/engine/wavcodec"
)

var (
	recordRefPath string
	recordOutPath string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Play a reference track while capturing the microphone to a WAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)

		ref, err := wavcodec.DecodeFile(recordRefPath)
		if err != nil {
			return fmt.Errorf("decode reference: %w", err)
		}

		out, err := engine.OpenPortAudioOutput(cfg.OutputDeviceID, cfg.EngineSampleRate, cfg.EngineChannels, cfg.FramesPerBlock)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer out.Close()

		in, err := engine.OpenPortAudioInput(cfg.InputDeviceID, cfg.EngineSampleRate, 1, cfg.FramesPerBlock)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer in.Close()

		eng := engine.NewDuplexEngine()
		if err := eng.AttachStreams(out, in); err != nil {
			return err
		}
		if err := eng.LoadReference(ref); err != nil {
			return err
		}
		eng.SetGains(float32(cfg.DefaultRefGain), float32(cfg.DefaultVocGain))

		if err := eng.PrepareForRecord(); err != nil {
			return err
		}
		if err := eng.OpenTransportRecordFile(recordOutPath); err != nil {
			return err
		}
		if err := eng.StartDuplex(); err != nil {
			return err
		}

		logger.Info("recording", "reference", recordRefPath, "output", recordOutPath)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info("stopping")
		if err := eng.StopTransportRecording(); err != nil {
			logger.Warn("transport recording", "err", err)
		}
		return eng.Stop()
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordRefPath, "reference", "", "reference WAV file to play during recording")
	recordCmd.Flags().StringVar(&recordOutPath, "out", "take.wav", "output WAV file for the captured vocal")
	_ = recordCmd.MarkFlagRequired("reference")
}
