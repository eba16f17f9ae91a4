// Package harmony maps scale degrees to pitches and builds diatonic chords.
package harmony

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode selects the interval set of a key.
type Mode int

const (
	Major Mode = iota
	Minor
)

func (m Mode) String() string {
	if m == Minor {
		return "minor"
	}
	return "major"
}

var (
	majorIntervals = [7]int{0, 2, 4, 5, 7, 9, 11}
	minorIntervals = [7]int{0, 2, 3, 5, 7, 8, 10}
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// KeyMode is a tonic pitch class plus a mode.
type KeyMode struct {
	Tonic int // pitch class 0-11
	Mode  Mode
}

// Intervals returns the seven semitone offsets of the key's scale.
func (k KeyMode) Intervals() [7]int {
	if k.Mode == Minor {
		return minorIntervals
	}
	return majorIntervals
}

func (k KeyMode) String() string {
	return noteNames[mod(k.Tonic, 12)] + " " + k.Mode.String()
}

// Register bounds the pitches an instrument may play. BaseOctave anchors
// degree 1 before clamping (5 puts degree 1 of C major on pitch 60).
type Register struct {
	BaseOctave int
	Min        int
	Max        int
}

// DefaultRegister spans C3..C6 with degree 1 anchored at octave 5.
func DefaultRegister() Register {
	return Register{BaseOctave: 5, Min: 48, Max: 84}
}

// Validate reports whether the register can hold at least one octave.
func (r Register) Validate() error {
	if r.Max < r.Min {
		return fmt.Errorf("register max %d must be >= min %d", r.Max, r.Min)
	}
	if r.Max-r.Min < 11 {
		return fmt.Errorf("register %d..%d must span at least 11 semitones", r.Min, r.Max)
	}
	return nil
}

// DegreeToPitch maps a 1-based scale degree to a pitch inside the register.
// Any integer degree is accepted; degrees outside 1..7 wrap with an octave shift.
func DegreeToPitch(degree int, key KeyMode, reg Register) int {
	// degree-1 = 7*octaveShift + within, computed without overflowing at math.MinInt.
	octaveShift, within := floorDiv(degree, 7), mod(degree, 7)-1
	if within < 0 {
		octaveShift--
		within = 6
	}
	intervals := key.Intervals()

	base := reg.BaseOctave*12 + mod(key.Tonic, 12) + intervals[within]
	return clampToRegister(base, octaveShift, reg)
}

// ChordTones returns root, third and fifth of the triad on degree. The third
// is lifted by octaves until it sits at least four semitones above the root.
func ChordTones(degree int, key KeyMode, reg Register) [3]int {
	root := DegreeToPitch(degree, key, reg)
	third := DegreeToPitch(degree+2, key, reg)
	fifth := DegreeToPitch(degree+4, key, reg)
	for third-root < 4 {
		third += 12
	}
	return [3]int{root, third, fifth}
}

// clampToRegister folds base+12*octaves into the register by whole octaves.
// The octave count is first limited to one octave beyond either bound, which
// keeps the pitch class and the side the pitch approaches from.
func clampToRegister(base, octaves int, reg Register) int {
	// An inverted register has no fold target.
	if reg.Max < reg.Min {
		lo, hi := floorDiv(math.MinInt32-base, 12), floorDiv(math.MaxInt32-base, 12)
		return base + 12*min(max(octaves, lo), hi)
	}
	lo := floorDiv(reg.Min-base, 12) - 1
	hi := floorDiv(reg.Max-base, 12) + 1
	pitch := base + 12*min(max(octaves, lo), hi)
	if pitch < reg.Min {
		pitch += 12 * ((reg.Min - pitch + 11) / 12)
	}
	if pitch > reg.Max {
		pitch -= 12 * ((pitch - reg.Max + 11) / 12)
	}
	return pitch
}

// NoteName formats a pitch as name plus octave, 60 = "C4".
func NoteName(pitch int) string {
	return noteNames[mod(pitch, 12)] + strconv.Itoa(floorDiv(pitch, 12)-1)
}

// ParseNote parses "C4", "Db3", "F#2", "Bb-1" or a bare pitch number like "60".
func ParseNote(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty note name")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	class, rest, err := parsePitchClass(s)
	if err != nil {
		return 0, err
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note %q", s)
	}
	return (octave+1)*12 + class, nil
}

// ParseKey builds a KeyMode from a tonic like "G", "Eb", "F♯" and a mode like
// "major", "maj", "minor" or "min".
func ParseKey(tonic, mode string) (KeyMode, error) {
	t := strings.ReplaceAll(strings.TrimSpace(tonic), " ", "")
	class, rest, err := parsePitchClass(t)
	if err != nil {
		return KeyMode{}, err
	}
	if rest != "" {
		return KeyMode{}, fmt.Errorf("invalid tonic: %s", tonic)
	}

	var m Mode
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "maj", "major", "":
		m = Major
	case "min", "minor":
		m = Minor
	default:
		return KeyMode{}, fmt.Errorf("invalid mode: %s", mode)
	}
	return KeyMode{Tonic: class, Mode: m}, nil
}

func parsePitchClass(s string) (int, string, error) {
	s = strings.NewReplacer("♭", "b", "♯", "#").Replace(s)
	if s == "" {
		return 0, "", fmt.Errorf("empty pitch class")
	}
	var class int
	switch strings.ToUpper(s[:1]) {
	case "C":
		class = 0
	case "D":
		class = 2
	case "E":
		class = 4
	case "F":
		class = 5
	case "G":
		class = 7
	case "A":
		class = 9
	case "B":
		class = 11
	default:
		return 0, "", fmt.Errorf("invalid pitch class in %q", s)
	}
	rest := s[1:]
	if rest != "" {
		switch rest[0] {
		case '#':
			class++
			rest = rest[1:]
		case 'b':
			class--
			rest = rest[1:]
		}
	}
	return mod(class, 12), rest, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
