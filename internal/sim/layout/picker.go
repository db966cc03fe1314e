package layout

import (
	"math/rand"
	"sync"
	"time"
)

// Picker draws blueprint variant indices for one generation call. Each call
// owns its Picker; nothing is shared between calls.
type Picker struct {
	seed int64
	r    *rand.Rand
}

func NewPicker(seed int64) *Picker {
	return &Picker{seed: seed, r: rand.New(rand.NewSource(seed))}
}

func (p *Picker) Seed() int64 { return p.seed }

// Index returns a uniform index in [0,n). Every call consumes one draw, so
// the sequence only depends on the seed and the number of elements placed.
func (p *Picker) Index(n int) int {
	if n <= 0 {
		return 0
	}
	return p.r.Intn(n)
}

var (
	seedMu  sync.Mutex
	seedRng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// FreshSeed draws a new non-negative seed for calls that were not given one.
func FreshSeed() int64 {
	seedMu.Lock()
	defer seedMu.Unlock()
	return seedRng.Int63()
}
