package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vocalign/duplexengine/engine"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available input and output audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := engine.ListInputDevices()
		if err != nil {
			return err
		}
		outputs, err := engine.ListOutputDevices()
		if err != nil {
			return err
		}

		fmt.Println("Input devices:")
		for _, d := range inputs {
			fmt.Printf("  [%d] %s (max %d ch, %.0f Hz default)\n", d.Index, d.Name, d.MaxInputs, d.DefaultSR)
		}
		fmt.Println("Output devices:")
		for _, d := range outputs {
			fmt.Printf("  [%d] %s (max %d ch, %.0f Hz default)\n", d.Index, d.Name, d.MaxOutputs, d.DefaultSR)
		}
		return nil
	},
}
