package geo

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// MaxAttempts bounds the rejection sampling loop before falling back to
	// the region center.
	MaxAttempts = 1000
	// Jitter is the maximum offset in degrees added to every returned point.
	Jitter = 0.0001
)

// Sampler draws uniformly distributed points inside a region. It is safe for
// concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSampler returns a Sampler seeded from the clock.
func NewSampler() *Sampler {
	return NewSamplerWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSamplerWithSource returns a Sampler driven by src. Useful for
// reproducible runs.
func NewSamplerWithSource(src rand.Source) *Sampler {
	return &Sampler{rnd: rand.New(src)}
}

// Sample returns a random point strictly inside the region's quadrilateral,
// offset by a small jitter. When no sample is accepted within MaxAttempts, or
// the region has no usable interior, the jittered center is returned. Sample
// never fails.
func (s *Sampler) Sample(r Region) Point {
	s.mu.Lock()
	defer s.mu.Unlock()

	corners := r.Corners()
	if usableCorners(corners) >= 3 {
		lo, hi := bounds(corners)
		for i := 0; i < MaxAttempts; i++ {
			p := Point{
				Lat: s.uniform(lo.Lat, hi.Lat),
				Lng: s.uniform(lo.Lng, hi.Lng),
			}
			if Contains(corners, p) {
				return s.jitter(p)
			}
		}
	}
	return s.jitter(r.Center)
}

func (s *Sampler) uniform(lo, hi float64) float64 {
	return lo + s.rnd.Float64()*(hi-lo)
}

func (s *Sampler) jitter(p Point) Point {
	return Point{
		Lat: p.Lat + s.uniform(-Jitter, Jitter),
		Lng: p.Lng + s.uniform(-Jitter, Jitter),
	}
}
