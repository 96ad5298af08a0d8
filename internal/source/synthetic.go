package source

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultSyntheticBins       = 256
	DefaultSyntheticReflectors = 3
	DefaultSyntheticNoise      = 0.02
	DefaultSyntheticInterval   = 20 * time.Millisecond
)

// SyntheticConfig describes a generated beat spectrum.
type SyntheticConfig struct {
	NumBins    int           // Bins per vector
	Reflectors int           // Number of moving targets
	NoiseFloor float64       // Mean of the exponential noise added to every bin
	Seed       uint64        // Same seed, same sequence
	Interval   time.Duration // Pacing, zero for as fast as possible
}

type reflector struct {
	position  float64 // Bin, fractional
	velocity  float64 // Bins per frame
	amplitude float64
	width     float64 // Peak standard deviation in bins
}

// Synthetic produces the magnitude spectrum of an FMCW radar looking at a few
// reflectors that drift back and forth in range. Peaks lose power with
// distance and sit on top of an exponential noise floor.
type Synthetic struct {
	config     SyntheticConfig
	rnd        *rand.Rand
	reflectors []reflector
	ticker     *time.Ticker
}

// NewSynthetic creates a generator. Zero config fields take defaults; a
// negative reflector count or noise floor disables that component.
func NewSynthetic(config SyntheticConfig) *Synthetic {
	if config.NumBins <= 0 {
		config.NumBins = DefaultSyntheticBins
	}
	if config.Reflectors < 0 {
		config.Reflectors = 0
	} else if config.Reflectors == 0 {
		config.Reflectors = DefaultSyntheticReflectors
	}
	if config.NoiseFloor < 0 {
		config.NoiseFloor = 0
	} else if config.NoiseFloor == 0 {
		config.NoiseFloor = DefaultSyntheticNoise
	}

	rnd := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))

	s := &Synthetic{
		config:     config,
		rnd:        rnd,
		reflectors: make([]reflector, config.Reflectors),
	}

	bins := float64(config.NumBins)
	for i := range s.reflectors {
		s.reflectors[i] = reflector{
			position:  rnd.Float64() * bins,
			velocity:  (rnd.Float64() - 0.5) * bins / 200,
			amplitude: 0.5 + rnd.Float64(),
			width:     1 + rnd.Float64()*bins/128,
		}
	}

	if config.Interval > 0 {
		s.ticker = time.NewTicker(config.Interval)
	}
	return s
}

// Read implements Source.
func (s *Synthetic) Read(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ticker != nil {
		select {
		case <-s.ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return s.next(), nil
}

// Close stops the pacing ticker.
func (s *Synthetic) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}

func (s *Synthetic) next() []float64 {
	bins := float64(s.config.NumBins)
	vector := make([]float64, s.config.NumBins)

	for i := range vector {
		vector[i] = s.rnd.ExpFloat64() * s.config.NoiseFloor
	}

	for j := range s.reflectors {
		r := &s.reflectors[j]

		// power falls off with range
		gain := r.amplitude / (1 + 4*r.position/bins)
		lo := max(int(r.position-4*r.width), 0)
		hi := min(int(r.position+4*r.width)+1, s.config.NumBins)
		for i := lo; i < hi; i++ {
			d := (float64(i) - r.position) / r.width
			vector[i] += gain * math.Exp(-d*d/2)
		}

		r.position += r.velocity
		if r.position < 0 || r.position >= bins {
			r.velocity = -r.velocity
			r.position = math.Max(0, math.Min(r.position, bins-1))
		}
	}

	return vector
}
