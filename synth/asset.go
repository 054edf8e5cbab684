// Package synth implements the procedural audio engine for the station
// automation platform. Given only an asset's identity metadata and an
// elapsed-time offset it reconstructs and plays a deterministic synthetic
// program for that asset, with no stored audio involved.
package synth

import "time"

// AssetType classifies a catalog asset and selects its voice topology.
type AssetType string

const (
	// AssetMusic is a regular music track (pad voice).
	AssetMusic AssetType = "music"
	// AssetJingle is a station jingle (bell voice).
	AssetJingle AssetType = "jingle"
	// AssetSpot is an advertising spot (noise texture voice).
	AssetSpot AssetType = "spot"
	// AssetShiur is a recorded lecture (drone voice).
	AssetShiur AssetType = "shiur"
	// AssetZmanim is a halachic-times announcement (chime voice).
	AssetZmanim AssetType = "zmanim"
)

// Known returns whether the asset type has a dedicated voice topology.
// Unknown types render with the music topology.
func (t AssetType) Known() bool {
	switch t {
	case AssetMusic, AssetJingle, AssetSpot, AssetShiur, AssetZmanim:
		return true
	}
	return false
}

// String returns the wire value of the asset type.
func (t AssetType) String() string { return string(t) }

// Asset describes one catalog entry as reported by the station's asset
// catalog. It is immutable from the engine's point of view. Only ID, Title,
// Artist, Type, and Category participate in parameter derivation; Duration
// is carried for display and rotation only and never influences the sound.
type Asset struct {
	ID       string
	Title    string
	Artist   string
	Type     AssetType
	Category string
	Duration time.Duration
}
