package preset

import (
	"fmt"
	"sort"

	"github.com/cwbudde/algo-jam/play"
	"github.com/cwbudde/algo-jam/sampler"
	"github.com/cwbudde/algo-jam/synth"
)

// Names returns the defined instrument names in sorted order.
func (p *Preset) Names() []string {
	names := make([]string, 0, len(p.Instruments))
	for name := range p.Instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build loads an instrument's samples, resampled to sampleRate, and returns
// the playable instrument. An empty name selects the preset's default.
func (p *Preset) Build(name string, sampleRate int) (play.Instrument, error) {
	if name == "" {
		name = p.Instrument
	}
	inst, ok := p.Instruments[name]
	if !ok {
		return play.Instrument{}, fmt.Errorf("instrument %q is not defined", name)
	}

	var timbre synth.Timbre
	switch inst.Timbre {
	case "oscillator":
		timbre = synth.Oscillator{Label: name, Waveform: inst.Waveform}
	case "single", "range":
		lib, err := sampler.Load(name, inst.Samples, sampler.WAVProvider{SampleRate: sampleRate})
		if err != nil {
			return play.Instrument{}, err
		}
		if inst.Timbre == "single" {
			timbre = synth.SingleSampleSet{Label: name, Library: lib}
		} else {
			timbre = synth.RangeSampleSet{Label: name, Library: lib}
		}
	default:
		return play.Instrument{}, fmt.Errorf("instrument %q: unknown timbre %q", name, inst.Timbre)
	}
	return play.Instrument{Name: name, Timbre: timbre, Register: inst.Register}, nil
}
