package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/kolradio/synthline/synth"
)

var (
	assetID       string
	assetTitle    string
	assetArtist   string
	assetType     string
	assetCategory string
	assetElapsed  float64

	playFor time.Duration
)

func assetFromFlags() (synth.Asset, error) {
	if assetID == "" {
		return synth.Asset{}, fmt.Errorf("an asset %s is required; it is what the sound is derived from", keyword("--id"))
	}
	return synth.Asset{
		ID:       assetID,
		Title:    assetTitle,
		Artist:   assetArtist,
		Type:     synth.AssetType(assetType),
		Category: assetCategory,
	}, nil
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play one synthesized track without the TUI",
	Example: paragraph("synthline play --id mus-042 --title \"Harbor Lights\" --for 30s\n" +
		"synthline play --id zmn-001 --type zmanim"),
	Args: cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		asset, err := assetFromFlags()
		if err != nil {
			return err
		}

		engine := synth.NewEngine(synth.Config{SampleRate: sampleRate})
		if err := engine.Init(); err != nil {
			return err
		}
		defer engine.Destroy()

		params := synth.Derive(asset)
		fmt.Printf("playing %s: %s %s, %d bpm\n",
			keyword(asset.ID), noteName(params.Root), params.Mode, params.Tempo)

		engine.SetVolume(volume)
		engine.SetMuted(muted)
		engine.PlayTrack(asset, assetElapsed)

		done := time.After(playFor)
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		select {
		case <-done:
		case <-interrupt:
		}

		engine.Stop()
		// Let the stop ramp finish before the device closes.
		time.Sleep(600 * time.Millisecond)
		return nil
	},
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func noteName(root int) string {
	return noteNames[((root%12)+12)%12]
}

func init() {
	for _, cmd := range []*cobra.Command{playCmd, renderCmd} {
		cmd.Flags().StringVar(&assetID, "id", "", "asset identifier (required)")
		cmd.Flags().StringVar(&assetTitle, "title", "", "asset title")
		cmd.Flags().StringVar(&assetArtist, "artist", "", "asset artist")
		cmd.Flags().StringVar(&assetType, "type", "music", "asset type: music, jingle, spot, shiur or zmanim")
		cmd.Flags().StringVar(&assetCategory, "category", "", "asset category")
		cmd.Flags().Float64Var(&assetElapsed, "elapsed", 0, "seconds into the track to join at")
	}
	playCmd.Flags().DurationVar(&playFor, "for", 30*time.Second, "how long to play")
}
