package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cwbudde/algo-jam/controller"
)

// cue is one controller event at a point of a scripted performance.
type cue struct {
	At    time.Duration
	Event controller.Event
}

type cueTime struct {
	AtMS *float64 `json:"at_ms"`
}

// parseScore reads one controller message per line with an extra "at_ms"
// field. Blank lines and lines starting with '#' are skipped. Cues are
// returned in time order; cues at the same time keep their file order.
func parseScore(r io.Reader) ([]cue, error) {
	var cues []cue
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var ct cueTime
		if err := json.Unmarshal([]byte(text), &ct); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ct.AtMS == nil || *ct.AtMS < 0 {
			return nil, fmt.Errorf("line %d: at_ms must be >= 0", line)
		}
		e, err := controller.DecodeMessage([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cues = append(cues, cue{At: time.Duration(*ct.AtMS * float64(time.Millisecond)), Event: e})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].At < cues[j].At })
	return cues, nil
}

// demoScore walks the scale up with a swell of vibrato on the top note,
// switches to chords for a cadence and ends on an arpeggio.
func demoScore() []cue {
	var cues []cue
	add := func(ms int, e controller.Event) {
		cues = append(cues, cue{At: time.Duration(ms) * time.Millisecond, Event: e})
	}
	on := func(d int, v float64) controller.Event {
		return controller.Event{Type: controller.NoteOn, Degree: d, Velocity: v}
	}
	off := func(d int) controller.Event {
		return controller.Event{Type: controller.NoteOff, Degree: d}
	}
	cycle := controller.Event{Type: controller.CycleMode}

	t := 0
	for d := 1; d <= 8; d++ {
		add(t, on(d, 0.5+0.05*float64(d)))
		add(t+220, off(d))
		t += 250
	}
	add(t, on(8, 0.9))
	for i := 1; i <= 10; i++ {
		add(t+i*80, controller.Event{Type: controller.Vibrato, Amount: float64(i) / 10})
	}
	t += 1000
	add(t, off(8))
	add(t, controller.Event{Type: controller.Vibrato})

	t += 300
	add(t, cycle)
	for _, d := range []int{1, 4, 5, 1} {
		add(t, on(d, 0.8))
		add(t+550, off(d))
		t += 600
	}

	add(t, cycle)
	add(t+100, on(1, 0.7))
	add(t+200, off(1))
	return cues
}

// scoreEnd is the time of the last cue.
func scoreEnd(cues []cue) time.Duration {
	if len(cues) == 0 {
		return 0
	}
	return cues[len(cues)-1].At
}
