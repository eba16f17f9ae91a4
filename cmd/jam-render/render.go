package main

import (
	"time"

	"github.com/cwbudde/algo-jam/controller"
	"github.com/cwbudde/algo-jam/synth"
)

// renderScore plays cues into sink while rendering the engine offline. The
// vibrato modulator ticks once per block, so blockFrames sets its rate.
// Rendering continues for tail after the last cue.
func renderScore(engine *synth.Engine, sink controller.Sink, cues []cue, tail time.Duration, blockFrames int) ([]float32, int) {
	sr := engine.SampleRate()
	if blockFrames < 1 {
		blockFrames = 1
	}
	end := scoreEnd(cues) + tail
	total := int(end.Seconds()*float64(sr)) + 1
	out := make([]float32, 0, total)
	dt := time.Duration(float64(blockFrames) / float64(sr) * float64(time.Second))

	failed := 0
	next := 0
	for len(out) < total {
		now := engine.Now()
		for next < len(cues) && cues[next].At <= now {
			if err := sink.Send(cues[next].Event); err != nil {
				failed++
			}
			next++
		}
		n := blockFrames
		if rest := total - len(out); rest < n {
			n = rest
		}
		engine.TickVibrato(dt)
		out = append(out, engine.Process(n)...)
	}
	return out, failed
}
