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
	reviewRefPath string
	reviewVocPath string
	reviewOffset  int32
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Play back a reference track mixed with a previously recorded vocal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)

		ref, err := wavcodec.DecodeFile(reviewRefPath)
		if err != nil {
			return fmt.Errorf("decode reference: %w", err)
		}
		voc, err := wavcodec.DecodeFile(reviewVocPath)
		if err != nil {
			return fmt.Errorf("decode vocal: %w", err)
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
		if err := eng.LoadVocal(voc); err != nil {
			return err
		}
		eng.SetGains(float32(cfg.DefaultRefGain), float32(cfg.DefaultVocGain))
		if cmd.Flags().Changed("offset") {
			eng.SetVocalOffset(reviewOffset)
		}

		if err := eng.PrepareForReview(); err != nil {
			return err
		}
		if err := eng.StartPlaybackTwoTrack(); err != nil {
			return err
		}

		logger.Info("reviewing", "reference", reviewRefPath, "vocal", reviewVocPath)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info("stopping")
		return eng.Stop()
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewRefPath, "reference", "", "reference WAV file")
	reviewCmd.Flags().StringVar(&reviewVocPath, "vocal", "", "previously recorded vocal WAV file")
	reviewCmd.Flags().Int32Var(&reviewOffset, "offset", 0, "vocal offset in frames applied during review (0 when not given)")
	_ = reviewCmd.MarkFlagRequired("reference")
	_ = reviewCmd.MarkFlagRequired("vocal")
}
