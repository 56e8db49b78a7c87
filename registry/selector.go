package registry

import (
	"context"
	"math/rand/v2"
	"sync"

	vc "github.com/unkn0wn-root/variantcache"
)

// Uniform picks one of a running test's variants with equal probability.
type Uniform struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

var _ vc.Selector = (*Uniform)(nil)

// NewUniform returns a selector seeded with seed; equal seeds give equal
// sequences of choices.
func NewUniform(seed uint64) *Uniform {
	return &Uniform{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (u *Uniform) Choose(_ context.Context, t vc.Test) (vc.Variant, bool, error) {
	if t.Status != vc.StatusRunning || len(t.Variants) == 0 {
		return vc.Variant{}, false, nil
	}
	u.mu.Lock()
	i := u.rnd.IntN(len(t.Variants))
	u.mu.Unlock()
	return t.Variants[i], true, nil
}
