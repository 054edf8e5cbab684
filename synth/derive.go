package synth

// Params is the deterministic musical fingerprint derived from an asset's
// identity fields. Equal identity fields always produce a bit-identical
// Params value, which is what lets a reconnecting client resume mid-track
// with no audible discontinuity beyond the intended crossfade.
type Params struct {
	Root        int    // semitone root, 0..11
	Mode        Mode   // major or minor
	Tempo       int    // BPM, 60..139
	Progression [4]int // scale-degree indices into the mode's scale
	Type        AssetType
}

// identitySeparator joins identity fields before hashing. Any stable
// separator works; it only has to keep field boundaries unambiguous
// within a process.
const identitySeparator = "|"

// identityString concatenates the fields that participate in derivation,
// in fixed order. Duration and any future descriptor fields are excluded
// on purpose.
func identityString(a Asset) string {
	return a.ID + identitySeparator +
		a.Title + identitySeparator +
		a.Artist + identitySeparator +
		string(a.Type) + identitySeparator +
		a.Category
}

// hashString is the classic h*31+c rolling hash, wrapped unsigned 32-bit.
// Stability is only required within a process, not across languages.
func hashString(s string) uint32 {
	var h uint32
	for _, c := range s {
		h = h*31 + uint32(c)
	}
	return h
}

// xorshift32 is the seeded PRNG behind derivation. A zero seed would lock
// the generator at zero, so it is forced to 1.
type xorshift32 struct {
	state uint32
}

func newXorshift32(seed uint32) *xorshift32 {
	if seed == 0 {
		seed = 1
	}
	return &xorshift32{state: seed}
}

// next advances the generator and returns a uniform value in [0, 1).
func (x *xorshift32) next() float64 {
	x.state ^= x.state << 13
	x.state ^= x.state >> 17
	x.state ^= x.state << 5
	return float64(x.state) / 4294967296.0
}

// intn returns a uniform value in [0, n).
func (x *xorshift32) intn(n int) int {
	return int(x.next() * float64(n))
}

// Derive computes the musical parameters for an asset. The draw order is
// fixed: root, mode, tempo, progression. Reordering the draws would change
// every fingerprint in the catalog.
func Derive(a Asset) Params {
	rng := newXorshift32(hashString(identityString(a)))

	p := Params{Type: a.Type}
	if !a.Type.Known() {
		p.Type = AssetMusic
	}

	p.Root = rng.intn(12)
	if rng.next() > 0.5 {
		p.Mode = ModeMajor
	} else {
		p.Mode = ModeMinor
	}
	p.Tempo = 60 + rng.intn(80)

	catalog := Progressions(p.Mode)
	p.Progression = catalog[rng.intn(len(catalog))]

	return p
}

// SecondsPerChord returns the harmonic rhythm of the parameters: four
// beats per chord at the derived tempo.
func (p Params) SecondsPerChord() float64 {
	return 4 * 60 / float64(p.Tempo)
}
