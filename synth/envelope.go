package synth

import (
	"math"
	"sort"
	"time"

	"github.com/cwbudde/algo-approx"
)

// silentGain is the floor exponential ramps decay toward; an exponential
// curve cannot reach zero.
const silentGain = 0.0001

type rampKind int

const (
	rampSet rampKind = iota
	rampLinear
	rampExp
)

type envPoint struct {
	kind  rampKind
	at    time.Duration
	value float64
}

// envelope is a gain automation timeline. Ramps run from the previous point
// to their own time and value.
type envelope struct {
	initial float64
	points  []envPoint
}

func (e *envelope) insert(p envPoint) {
	i := sort.Search(len(e.points), func(i int) bool { return e.points[i].at > p.at })
	e.points = append(e.points, envPoint{})
	copy(e.points[i+1:], e.points[i:])
	e.points[i] = p
}

func (e *envelope) setValueAt(v float64, at time.Duration) {
	e.insert(envPoint{kind: rampSet, at: at, value: v})
}

func (e *envelope) linearRampTo(v float64, at time.Duration) {
	e.insert(envPoint{kind: rampLinear, at: at, value: v})
}

func (e *envelope) expRampTo(v float64, at time.Duration) {
	e.insert(envPoint{kind: rampExp, at: at, value: v})
}

// holdAt freezes the curve at its current value from t on, dropping every
// later point.
func (e *envelope) holdAt(t time.Duration) float64 {
	v := e.valueAt(t)
	keep := e.points[:0]
	for _, p := range e.points {
		if p.at < t {
			keep = append(keep, p)
		}
	}
	e.points = keep
	e.setValueAt(v, t)
	return v
}

func (e *envelope) valueAt(t time.Duration) float64 {
	v := e.initial
	var from time.Duration
	for _, p := range e.points {
		if t < p.at {
			span := p.at - from
			if span <= 0 {
				return v
			}
			frac := float64(t-from) / float64(span)
			if frac <= 0 {
				return v
			}
			switch p.kind {
			case rampLinear:
				return v + (p.value-v)*frac
			case rampExp:
				if v <= 0 || p.value <= 0 {
					return v
				}
				k := float32(math.Log(p.value/v) * frac)
				return v * float64(approx.FastExp(k))
			default:
				return v
			}
		}
		v = p.value
		from = p.at
	}
	return v
}
