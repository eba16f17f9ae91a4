package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.bug.st/serial"

	"github.com/cwbudde/algo-jam/controller"
	"github.com/cwbudde/algo-jam/play"
	"github.com/cwbudde/algo-jam/preset"
	"github.com/cwbudde/algo-jam/synth"
)

var logger *slog.Logger

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path (built-in defaults when empty)")
	instrument := flag.String("instrument", "", "Instrument name override")
	source := flag.String("source", "stdin", "Event source: serial, midi or stdin")
	port := flag.String("port", "", "Serial device or MIDI input port name")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	sampleRate := flag.Int("sample-rate", 48000, "Output sample rate in Hz")
	bufferMS := flag.Int("buffer-ms", 30, "Device buffer length in milliseconds")
	echo := flag.Bool("echo", false, "Echo dispatched events to stdout as JSON lines")
	listPorts := flag.Bool("list-ports", false, "List serial and MIDI input ports and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	initLogger(*debug)

	if *listPorts {
		printPorts()
		return
	}

	if err := run(*presetPath, *instrument, *source, *port, *baud, *sampleRate, *bufferMS, *echo); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("jam-play failed", "err", err)
		os.Exit(1)
	}
}

func run(presetPath, instrument, source, port string, baud, sampleRate, bufferMS int, echo bool) error {
	p := preset.Default()
	if presetPath != "" {
		var err error
		if p, err = preset.LoadJSON(presetPath); err != nil {
			return err
		}
	}
	inst, err := p.Build(instrument, sampleRate)
	if err != nil {
		return err
	}

	engine := synth.NewEngine(sampleRate, p.Engine, synth.WithLogger(logger))
	player, err := play.NewPlayer(engine, p.Key, inst,
		play.WithLogger(logger),
		play.WithSettings(p.Play),
		play.WithMode(p.Mode),
	)
	if err != nil {
		return err
	}

	var sink controller.Sink = controller.DispatchSink{Performer: player, Logger: logger}
	if echo {
		sink = controller.MultiSink{sink, controller.NewJSONSink(os.Stdout)}
	}

	out, err := openAudio(engine, sampleRate*bufferMS/1000)
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer out.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.RunVibrato(ctx)

	logger.Info("ready", "instrument", inst.Name, "key", p.Key.String(), "mode", p.Mode.String(), "source", source, "sample_rate", sampleRate)
	defer func() {
		st := player.Status()
		logger.Info("stopping", "last_note", st.NoteName, "voices_stopped", player.StopAll())
	}()

	switch source {
	case "stdin":
		st, err := controller.Replay(ctx, os.Stdin, sink)
		logger.Info("input closed", "delivered", st.Delivered, "dropped", st.Dropped, "failed", st.Failed)
		if err != nil {
			return err
		}
		// Let release tails ring out.
		select {
		case <-ctx.Done():
		case <-time.After(p.Engine.StopDelay + 100*time.Millisecond):
		}
		return nil
	case "serial":
		if port == "" {
			return fmt.Errorf("-port is required for the serial source")
		}
		r, err := controller.OpenSerial(port, baud, p.Controller.NumSwitches, logger)
		if err != nil {
			return err
		}
		defer r.Close()
		defer func() {
			rx, bad := r.Frames()
			logger.Info("serial closed", "frames", rx, "dropped", bad)
		}()
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-r.Done():
				logger.Warn("serial stream ended")
				cancel()
			case <-sctx.Done():
			}
		}()
		return runController(sctx, p.Controller, r, sink)
	case "midi":
		if port == "" {
			return fmt.Errorf("-port is required for the midi source")
		}
		r, err := controller.ListenMIDI(port, p.Controller.NumSwitches, p.MIDI, logger)
		if err != nil {
			return err
		}
		defer r.Close()
		return runController(ctx, p.Controller, r, sink)
	default:
		return fmt.Errorf("unknown source %q", source)
	}
}

func runController(ctx context.Context, cfg controller.Config, r controller.Reader, sink controller.Sink) error {
	c, err := controller.New(cfg, r, sink, controller.WithLogger(logger))
	if err != nil {
		return err
	}
	err = c.Run(ctx)
	st := c.Stats()
	logger.Info("controller stopped", "sent", st.Sent, "failed", st.Failed, "read_errors", st.ReadErrors)
	return err
}

func printPorts() {
	ports, err := serial.GetPortsList()
	if err != nil {
		logger.Warn("list serial ports", "err", err)
	}
	fmt.Println("Serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println("MIDI inputs:")
	for _, in := range midi.GetInPorts() {
		fmt.Printf("  %s\n", in.String())
	}
}
