package main

import (
	"fmt"

	"github.com/keagan/scenesplit/internal/config"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/pkg/util"
	"github.com/spf13/cobra"
)

var detectSensitivity int

var detectCmd = &cobra.Command{
	Use:   "detect [video]",
	Short: "Print detected scene boundaries without exporting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		sensitivity := cfg.Detection.DefaultSensitivity
		if cmd.Flags().Changed("sensitivity") {
			sensitivity = detectSensitivity
		}
		if err := scene.ValidateSensitivity(sensitivity); err != nil {
			return err
		}

		c, err := newComponents(cfg)
		if err != nil {
			return err
		}

		boundaries, err := c.detector.DetectBoundaries(cmd.Context(), args[0], sensitivity)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(boundaries) == 0 {
			fmt.Fprintln(out, "no scenes found")
			return nil
		}
		for i, b := range boundaries {
			fmt.Fprintf(out, "scene %3d  %s - %s  (%.2fs)\n", i+1,
				util.FormatDuration(util.SecondsToDuration(b.Start)),
				util.FormatDuration(util.SecondsToDuration(b.End)),
				b.Duration())
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().IntVarP(&detectSensitivity, "sensitivity", "s", scene.DefaultSensitivity, "scene sensitivity, lower finds more scenes")
}
