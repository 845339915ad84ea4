package facilitator

import (
	"math/rand/v2"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Sampler draws uniform values in [0,1).
type Sampler interface {
	Float64() float64
}

type randSampler struct{}

func (randSampler) Float64() float64 { return rand.Float64() }

// RandomSampler uses the runtime's concurrency-safe generator.
var RandomSampler Sampler = randSampler{}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() float64

func (f SamplerFunc) Float64() float64 { return f() }
