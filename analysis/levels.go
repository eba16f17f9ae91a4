// Package analysis measures rendered audio: levels, decay and the dominant
// frequency of a block.
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// Levels summarises the loudness of a rendered signal.
type Levels struct {
	SampleRate int `json:"sample_rate"`
	Frames     int `json:"frames"`

	Peak     float64 `json:"peak"`
	RMS      float64 `json:"rms"`
	PeakDBFS float64 `json:"peak_dbfs"`
	RMSDBFS  float64 `json:"rms_dbfs"`

	// Clipped counts samples at or beyond full scale.
	Clipped int `json:"clipped"`
	// DecayDBPerS is the slope of the RMS envelope after its peak, NaN when
	// the signal is too short or flat to fit.
	DecayDBPerS float64 `json:"decay_db_per_s"`
	// Tail is the time from the start to the last frame above -60 dBFS.
	TailSeconds float64 `json:"tail_seconds"`
}

// Measure computes Levels for a mono signal.
func Measure(x []float32, sampleRate int) Levels {
	l := Levels{SampleRate: sampleRate, Frames: len(x), DecayDBPerS: math.NaN()}
	if len(x) == 0 || sampleRate <= 0 {
		l.PeakDBFS = linToDB(0)
		l.RMSDBFS = linToDB(0)
		return l
	}

	f := make([]float64, len(x))
	last := -1
	floor := math.Pow(10, -60.0/20.0)
	for i, v := range x {
		a := math.Abs(float64(v))
		f[i] = float64(v)
		if a > l.Peak {
			l.Peak = a
		}
		if a >= 1 {
			l.Clipped++
		}
		if a > floor {
			last = i
		}
	}
	l.RMS = rms1(f)
	l.PeakDBFS = linToDB(l.Peak)
	l.RMSDBFS = linToDB(l.RMS)
	if last >= 0 {
		l.TailSeconds = float64(last+1) / float64(sampleRate)
	}

	env := rmsEnvelope(f, 256, 128)
	l.DecayDBPerS = decaySlopeDBPerS(env, 128.0/float64(sampleRate))
	return l
}

func (l Levels) String() string {
	return fmt.Sprintf("peak=%.3f (%.1f dBFS) rms=%.3f (%.1f dBFS) clipped=%d tail=%.2fs",
		l.Peak, l.PeakDBFS, l.RMS, l.RMSDBFS, l.Clipped, l.TailSeconds)
}

// DominantFrequency returns the frequency of the strongest spectral peak in
// the first fftSize frames of x, refined by parabolic interpolation.
// fftSize must be a power of two no larger than len(x).
func DominantFrequency(x []float32, sampleRate int, fftSize int) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if fftSize < 8 || fftSize&(fftSize-1) != 0 {
		return 0, fmt.Errorf("fft size %d is not a power of two >= 8", fftSize)
	}
	if len(x) < fftSize {
		return 0, fmt.Errorf("need %d frames, got %d", fftSize, len(x))
	}
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return 0, fmt.Errorf("fft plan: %w", err)
	}

	buf := make([]float64, fftSize)
	for i := range buf {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
		buf[i] = float64(x[i]) * w
	}
	spec := make([]complex128, fftSize/2+1)
	plan.Forward(spec, buf)

	best := 1
	bestMag := 0.0
	mags := make([]float64, len(spec))
	for k := 1; k < len(spec)-1; k++ {
		mags[k] = cmplx.Abs(spec[k])
		if mags[k] > bestMag {
			bestMag = mags[k]
			best = k
		}
	}
	if bestMag == 0 {
		return 0, nil
	}
	mags[best+1] = cmplx.Abs(spec[best+1])

	// Parabolic peak refinement on log magnitude.
	delta := 0.0
	a, b, c := linToDB(mags[best-1]), linToDB(mags[best]), linToDB(mags[best+1])
	if den := a - 2*b + c; math.Abs(den) > 1e-12 {
		delta = 0.5 * (a - c) / den
	}
	return (float64(best) + delta) * float64(sampleRate) / float64(fftSize), nil
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	peak := -math.MaxFloat64
	peakIdx := 0
	for i, v := range env {
		db := linToDB(v)
		if db > peak {
			peak = db
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(env)-4 {
		return math.NaN()
	}

	threshold := peak - 60.0
	end := len(env)
	for i := start; i < len(env); i++ {
		if linToDB(env[i]) < threshold {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}

	var sx, sy, sxx, sxy float64
	n := float64(end - start)
	for i := start; i < end; i++ {
		x := float64(i-start) * hopSec
		y := linToDB(env[i])
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}
