// Package catalog provides the built-in program catalog and the rotation
// feed that reports what is on air. The feed plays the role of the station
// scheduler: it owns track identity and timing, while the synthesis engine
// only ever sees the asset metadata and an elapsed offset.
package catalog

import (
	"time"

	"github.com/kolradio/synthline/synth"
)

// Entry is one catalog row: the asset plus display metadata.
type Entry struct {
	Asset   synth.Asset
	AddedAt time.Time
}

// Builtin returns the demo catalog. Every asset type is represented so the
// whole synthesis surface is reachable from the UI.
func Builtin() []Entry {
	base := time.Date(2026, time.January, 4, 6, 0, 0, 0, time.UTC)
	added := func(d int) time.Time { return base.AddDate(0, 0, d) }
	return []Entry{
		{Asset: synth.Asset{ID: "mus-001", Title: "Morning Drive", Artist: "The Ko-L Ensemble", Type: synth.AssetMusic, Category: "pop", Duration: 3 * time.Minute}, AddedAt: added(0)},
		{Asset: synth.Asset{ID: "mus-002", Title: "Harbor Lights", Artist: "Dana Peretz", Type: synth.AssetMusic, Category: "ambient", Duration: 4 * time.Minute}, AddedAt: added(2)},
		{Asset: synth.Asset{ID: "mus-003", Title: "Northbound", Artist: "Quartet 19", Type: synth.AssetMusic, Category: "jazz", Duration: 150 * time.Second}, AddedAt: added(9)},
		{Asset: synth.Asset{ID: "jin-001", Title: "Top of the Hour", Artist: "Station ID", Type: synth.AssetJingle, Category: "id", Duration: 12 * time.Second}, AddedAt: added(1)},
		{Asset: synth.Asset{ID: "jin-002", Title: "News In Brief", Artist: "Station ID", Type: synth.AssetJingle, Category: "news", Duration: 9 * time.Second}, AddedAt: added(14)},
		{Asset: synth.Asset{ID: "spt-001", Title: "Cafe Tmol", Artist: "Sponsor", Type: synth.AssetSpot, Category: "local", Duration: 30 * time.Second}, AddedAt: added(5)},
		{Asset: synth.Asset{ID: "spt-002", Title: "Winter Sale", Artist: "Sponsor", Type: synth.AssetSpot, Category: "retail", Duration: 20 * time.Second}, AddedAt: added(21)},
		{Asset: synth.Asset{ID: "shi-001", Title: "Daily Halacha", Artist: "R. Melamed", Type: synth.AssetShiur, Category: "halacha", Duration: 10 * time.Minute}, AddedAt: added(3)},
		{Asset: synth.Asset{ID: "zmn-001", Title: "Candle Lighting", Artist: "Calendar", Type: synth.AssetZmanim, Category: "shabbat", Duration: 45 * time.Second}, AddedAt: added(7)},
	}
}

// Feed is a fixed rotation with a server-reported start timestamp. The
// engine is stateless about scheduling, so joining mid-rotation means
// handing it the asset together with how far into it the station already
// is.
type Feed struct {
	entries []Entry
	start   time.Time
	total   time.Duration
}

// NewFeed creates a rotation over entries that began at start. Entries
// without a positive duration are skipped.
func NewFeed(entries []Entry, start time.Time) *Feed {
	f := &Feed{start: start}
	for _, e := range entries {
		if e.Asset.Duration <= 0 {
			continue
		}
		f.entries = append(f.entries, e)
		f.total += e.Asset.Duration
	}
	return f
}

// NowPlaying returns the asset on air at now and the elapsed seconds into
// it. The rotation loops; before the feed start it reports the first
// entry at offset zero. ok is false for an empty feed.
func (f *Feed) NowPlaying(now time.Time) (asset synth.Asset, elapsedSeconds float64, ok bool) {
	if len(f.entries) == 0 {
		return synth.Asset{}, 0, false
	}
	offset := now.Sub(f.start)
	if offset < 0 {
		return f.entries[0].Asset, 0, true
	}
	offset %= f.total
	for _, e := range f.entries {
		if offset < e.Asset.Duration {
			return e.Asset, offset.Seconds(), true
		}
		offset -= e.Asset.Duration
	}
	// Unreachable: offset was reduced modulo the total above.
	return f.entries[0].Asset, 0, true
}

// Len returns the number of rotating entries.
func (f *Feed) Len() int { return len(f.entries) }
