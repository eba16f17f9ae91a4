package main

import (
	"encoding/binary"
	"math"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-jam/synth"
)

// engineStream pulls mono float32 frames from the engine for oto. Each read
// advances the engine's sample clock, so the device drives time.
type engineStream struct {
	engine *synth.Engine
}

func (s *engineStream) Read(buf []byte) (int, error) {
	frames := len(buf) / 4
	if frames == 0 {
		return 0, nil
	}
	block := s.engine.Process(frames)
	for i, v := range block {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return frames * 4, nil
}

// audioOutput is the device side of a live session.
type audioOutput struct {
	ctx    *oto.Context
	player *oto.Player
}

func openAudio(engine *synth.Engine, bufferFrames int) (*audioOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   engine.SampleRate(),
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	p := ctx.NewPlayer(&engineStream{engine: engine})
	if bufferFrames > 0 {
		p.SetBufferSize(bufferFrames * 4)
	}
	p.Play()
	return &audioOutput{ctx: ctx, player: p}, nil
}

func (a *audioOutput) Close() error {
	return a.player.Close()
}
