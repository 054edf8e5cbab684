package synth

import "math"

// Mode selects between the two supported diatonic modes.
type Mode int

const (
	// ModeMajor is the major scale.
	ModeMajor Mode = iota
	// ModeMinor is the natural minor scale.
	ModeMinor
)

// String returns "major" or "minor".
func (m Mode) String() string {
	if m == ModeMinor {
		return "minor"
	}
	return "major"
}

// ChordQuality names the interval set a chord is built from.
type ChordQuality int

const (
	// QualityMajor is a major triad.
	QualityMajor ChordQuality = iota
	// QualityMinor is a minor triad.
	QualityMinor
	// QualityDiminished is a diminished triad.
	QualityDiminished
	// QualitySus4 is a suspended-fourth triad.
	QualitySus4
	// QualityMajor7 is a major seventh chord.
	QualityMajor7
	// QualityMinor7 is a minor seventh chord.
	QualityMinor7
)

// Semitone offsets from the scale root.
var (
	scaleMajor = []int{0, 2, 4, 5, 7, 9, 11}
	scaleMinor = []int{0, 2, 3, 5, 7, 8, 10}
)

// chordIntervals maps each quality to its semitone offsets from the chord
// root.
var chordIntervals = map[ChordQuality][]int{
	QualityMajor:      {0, 4, 7},
	QualityMinor:      {0, 3, 7},
	QualityDiminished: {0, 3, 6},
	QualitySus4:       {0, 5, 7},
	QualityMajor7:     {0, 4, 7, 11},
	QualityMinor7:     {0, 3, 7, 10},
}

// Diatonic triad quality for each scale degree.
var (
	degreeQualityMajor = []ChordQuality{
		QualityMajor, QualityMinor, QualityMinor, QualityMajor,
		QualityMajor, QualityMinor, QualityDiminished,
	}
	degreeQualityMinor = []ChordQuality{
		QualityMinor, QualityDiminished, QualityMajor, QualityMinor,
		QualityMinor, QualityMajor, QualityMajor,
	}
)

// progressions is the fixed catalog of four-degree progressions per mode.
// Derivation indexes into these tables; they are never computed.
var progressions = map[Mode][][4]int{
	ModeMajor: {
		{0, 3, 4, 0},
		{0, 5, 3, 4},
		{0, 4, 5, 3},
		{1, 4, 0, 0},
		{0, 3, 0, 4},
		{5, 3, 0, 4},
	},
	ModeMinor: {
		{0, 3, 4, 0},
		{0, 5, 2, 6},
		{0, 6, 5, 4},
		{0, 3, 6, 4},
		{3, 6, 0, 0},
		{0, 1, 4, 0},
	},
}

// scale returns the semitone offsets for the mode.
func (m Mode) scale() []int {
	if m == ModeMinor {
		return scaleMinor
	}
	return scaleMajor
}

// degreeQuality returns the diatonic triad quality table for the mode.
func (m Mode) degreeQuality() []ChordQuality {
	if m == ModeMinor {
		return degreeQualityMinor
	}
	return degreeQualityMajor
}

// NoteFrequency converts a MIDI note number to its equal-temperament
// frequency in Hz, with A4 = 440 Hz at MIDI 69.
func NoteFrequency(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// ScaleNoteToMIDI resolves an arbitrary scale degree to a MIDI note.
// Degrees outside [0, scale length) wrap with floor-division semantics so
// that negative degrees resolve into the octave below, never to an
// out-of-range index. Octave 4 roughly centers around middle C for root 0.
func ScaleNoteToMIDI(root int, mode Mode, degree, octave int) int {
	scale := mode.scale()
	n := len(scale)
	carry := degree / n
	idx := degree % n
	if idx < 0 {
		idx += n
		carry--
	}
	return root + octave*12 + 12 + scale[idx] + carry*12
}

// BuildChord returns the MIDI notes of the diatonic chord rooted on the
// given scale degree. The chord quality comes from the mode's diatonic
// table after wrapping the degree the same way ScaleNoteToMIDI does.
func BuildChord(root int, mode Mode, degree, octave int) []int {
	chordRoot := ScaleNoteToMIDI(root, mode, degree, octave)

	n := len(mode.scale())
	idx := degree % n
	if idx < 0 {
		idx += n
	}
	quality := mode.degreeQuality()[idx]

	intervals := chordIntervals[quality]
	notes := make([]int, len(intervals))
	for i, iv := range intervals {
		notes[i] = chordRoot + iv
	}
	return notes
}

// Progressions returns the fixed progression catalog for the mode.
func Progressions(mode Mode) [][4]int {
	return progressions[mode]
}

// ScaleLength returns the number of degrees in the mode's scale.
func ScaleLength(mode Mode) int {
	return len(mode.scale())
}
