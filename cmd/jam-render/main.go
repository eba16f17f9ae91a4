package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/algo-jam/analysis"
	"github.com/cwbudde/algo-jam/controller"
	"github.com/cwbudde/algo-jam/internal/wavio"
	"github.com/cwbudde/algo-jam/play"
	"github.com/cwbudde/algo-jam/preset"
	"github.com/cwbudde/algo-jam/synth"
)

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path (built-in defaults when empty)")
	scorePath := flag.String("score", "", "Score file: one controller message per line with at_ms (built-in demo when empty)")
	instrument := flag.String("instrument", "", "Instrument name override")
	mode := flag.String("mode", "", "Initial play mode override: single, chord or arpeggio")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate in Hz")
	tail := flag.Float64("tail", 1.5, "Seconds rendered after the last cue")
	seed := flag.Uint64("seed", 1, "Arpeggio shuffle seed")
	output := flag.String("output", "jam.wav", "Output WAV file path")
	reportPath := flag.String("report", "", "Optional JSON level report path")
	debug := flag.Bool("debug", false, "Log every dispatched event")
	flag.Parse()

	p := preset.Default()
	if *presetPath != "" {
		var err error
		p, err = preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
	}
	if *mode != "" {
		m, err := play.ParseMode(*mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		p.Mode = m
	}

	cues := demoScore()
	if *scorePath != "" {
		f, err := os.Open(*scorePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening score: %v\n", err)
			os.Exit(1)
		}
		cues, err = parseScore(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing score %q: %v\n", *scorePath, err)
			os.Exit(1)
		}
	}

	inst, err := p.Build(*instrument, *sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building instrument: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	engine := synth.NewEngine(*sampleRate, p.Engine, synth.WithLogger(logger))
	player, err := play.NewPlayer(engine, p.Key, inst,
		play.WithLogger(logger),
		play.WithSeed(*seed),
		play.WithSettings(p.Play),
		play.WithMode(p.Mode),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating player: %v\n", err)
		os.Exit(1)
	}
	sink := controller.DispatchSink{Performer: player, Logger: logger}

	fmt.Printf("Rendering %d cues with %s in %s (%s mode) at %d Hz...\n", len(cues), inst.Name, p.Key, p.Mode, *sampleRate)

	blockFrames := int(p.Engine.VibratoPeriod.Seconds() * float64(*sampleRate))
	tailDur := time.Duration(*tail * float64(time.Second))
	samples, failed := renderScore(engine, sink, cues, tailDur, blockFrames)
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d cues failed to dispatch\n", failed)
	}

	if err := wavio.WriteMono(*output, samples, *sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}

	lv := analysis.Measure(samples, *sampleRate)
	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, len(samples))
	fmt.Printf("Levels: %s\n", lv)
	if lv.Clipped > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d samples clipped\n", lv.Clipped)
	}

	if *reportPath != "" {
		b, err := json.MarshalIndent(lv, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*reportPath, append(b, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
	}
}
