package main

import (
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/kolradio/synthline/synth"
	"github.com/kolradio/synthline/synth/graph"
)

var (
	renderFor time.Duration
	renderOut string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a track offline to gzip-compressed PCM",
	Long: paragraph(fmt.Sprintf("\nRender a synthesized track to a file without touching the audio device. Output is %s, gzip compressed.",
		keyword("stereo 16-bit little-endian PCM"))),
	Example: paragraph("synthline render --id mus-042 --for 10s --out track.pcm.gz"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		asset, err := assetFromFlags()
		if err != nil {
			return err
		}

		r := graph.NewRenderer(sampleRate)
		engine := synth.NewEngine(synth.Config{SampleRate: sampleRate, Builder: r})
		if err := engine.Init(); err != nil {
			return err
		}
		defer engine.Destroy()

		engine.SetVolume(volume)
		engine.PlayTrack(asset, assetElapsed)

		f, err := os.Create(expandPath(renderOut))
		if err != nil {
			return fmt.Errorf("unable to create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck

		gz := gzip.NewWriter(f)
		if err := graph.RenderPCM(r, gz, renderFor); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("unable to finish output: %w", err)
		}

		fmt.Printf("wrote %s of audio to %s\n", renderFor, renderOut)
		return nil
	},
}

func init() {
	renderCmd.Flags().DurationVar(&renderFor, "for", 30*time.Second, "how much audio to render")
	renderCmd.Flags().StringVar(&renderOut, "out", "track.pcm.gz", "output file")
}
