package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-jam/analysis"
	"github.com/cwbudde/algo-jam/harmony"
	"github.com/cwbudde/algo-jam/preset"
	"github.com/cwbudde/algo-jam/sampler"
)

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path")
	instrument := flag.String("instrument", "", "Instrument to check (all sample instruments when empty)")
	maxWindow := flag.Int("window", 16384, "Largest FFT window in frames")
	tolerance := flag.Float64("tolerance", 35, "Allowed pitch deviation in cents")
	flag.Parse()

	if *presetPath == "" {
		fmt.Fprintln(os.Stderr, "-preset is required")
		os.Exit(2)
	}
	p, err := preset.LoadJSON(*presetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "preset: %v\n", err)
		os.Exit(1)
	}

	names := p.Names()
	if *instrument != "" {
		names = []string{*instrument}
	}

	bad := 0
	for _, name := range names {
		inst, ok := p.Instruments[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "instrument %q is not defined\n", name)
			os.Exit(1)
		}
		if len(inst.Samples) == 0 {
			continue
		}
		lib, err := sampler.Load(name, inst.Samples, sampler.WAVProvider{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("%s (%s, %d samples)\n", name, inst.Timbre, lib.Len())
		for _, s := range lib.Samples() {
			r := check(s, *maxWindow)
			flagText := ""
			if r.err != nil {
				flagText = "  ERROR " + r.err.Error()
				bad++
			} else if math.Abs(r.cents) > *tolerance {
				flagText = "  OUT OF TUNE"
				bad++
			}
			fmt.Printf("  %-10s ref=%-6.1f detected=%7.2f Hz (%s %+6.1f cents)  peak=%6.1f dBFS  tail=%.2fs%s\n",
				describe(s), s.ReferencePitch(), r.freq, r.note, r.cents, r.levels.PeakDBFS, r.levels.TailSeconds, flagText)
		}
	}
	if bad > 0 {
		fmt.Printf("\n%d samples need attention\n", bad)
		os.Exit(1)
	}
}

type result struct {
	freq   float64
	note   string
	cents  float64
	levels analysis.Levels
	err    error
}

// check measures one sample and compares its dominant frequency against the
// pitch the descriptor claims it plays at rate 1.
func check(s sampler.Sample, maxWindow int) result {
	data := s.Buffer.Data
	sr := s.Buffer.SampleRate
	r := result{levels: analysis.Measure(data, sr)}

	n := window(len(data), maxWindow)
	if n < 256 {
		r.err = fmt.Errorf("too short for pitch analysis (%d frames)", len(data))
		return r
	}
	r.freq, r.err = analysis.DominantFrequency(data, sr, n)
	if r.err != nil || r.freq <= 0 {
		return r
	}
	detected := 69 + 12*math.Log2(r.freq/440)
	r.note = harmony.NoteName(int(math.Round(detected)))
	r.cents = 100 * (detected - s.ReferencePitch())
	// Octave errors from a strong harmonic are folded back.
	for r.cents > 600 {
		r.cents -= 1200
	}
	for r.cents < -600 {
		r.cents += 1200
	}
	return r
}

// window is the largest power of two <= min(frames, max).
func window(frames, max int) int {
	n := 1
	for n*2 <= frames && n*2 <= max {
		n *= 2
	}
	return n
}

func describe(s sampler.Sample) string {
	if s.Range {
		return harmony.NoteName(s.Start) + "-" + harmony.NoteName(s.End)
	}
	return harmony.NoteName(s.Start)
}
