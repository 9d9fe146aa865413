package warpq

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// DefaultPriorityLevels is the number of levels used when none is given.
const DefaultPriorityLevels = 3

// AnyLevel makes Has and Size look at every level.
const AnyLevel = -1

// PriorityQueue holds keys in a fixed number of priority levels, level 0
// being the most urgent. Pop picks a level at random with a weight that
// halves at each level, so lower levels keep being served while higher
// levels are busy.
//
// PriorityQueue is not safe for concurrent use.
type PriorityQueue struct {
	levels  []*LevelQueue
	cutoffs []float64
	rand    func() float64
}

// PriorityQueueOption configures a PriorityQueue.
type PriorityQueueOption func(*PriorityQueue)

// WithRand replaces the uniform [0, 1) source used by Pop.
func WithRand(fn func() float64) PriorityQueueOption {
	return func(pq *PriorityQueue) {
		if fn != nil {
			pq.rand = fn
		}
	}
}

// NewPriorityQueue creates a PriorityQueue with the given number of levels.
// A non-positive count falls back to DefaultPriorityLevels.
func NewPriorityQueue(levels int, opts ...PriorityQueueOption) *PriorityQueue {
	if levels < 1 {
		levels = DefaultPriorityLevels
	}
	pq := &PriorityQueue{
		levels:  make([]*LevelQueue, levels),
		cutoffs: buildCutoffs(levels),
		rand:    rand.Float64,
	}
	for i := range pq.levels {
		pq.levels[i] = NewLevelQueue()
	}
	for _, opt := range opts {
		opt(pq)
	}
	return pq
}

// buildCutoffs returns the cumulative selection probability of each level.
// Level i weighs 2^-i; the table is normalised so the last entry is 1.
func buildCutoffs(levels int) []float64 {
	weights := make([]float64, levels)
	var total float64
	for i := range weights {
		weights[i] = math.Pow(2, -float64(i))
		total += weights[i]
	}
	cutoffs := make([]float64, levels)
	var acc float64
	for i, w := range weights {
		acc += w
		cutoffs[i] = acc / total
	}
	cutoffs[levels-1] = 1
	return cutoffs
}

// Levels returns the number of priority levels.
func (pq *PriorityQueue) Levels() int {
	return len(pq.levels)
}

// Cutoffs returns a copy of the cumulative probability table.
func (pq *PriorityQueue) Cutoffs() []float64 {
	out := make([]float64, len(pq.cutoffs))
	copy(out, pq.cutoffs)
	return out
}

func (pq *PriorityQueue) validLevel(level int) bool {
	return level >= 0 && level < len(pq.levels)
}

// GetPriority returns the level holding key, or -1 if key is not queued.
func (pq *PriorityQueue) GetPriority(key string) int {
	for i, q := range pq.levels {
		if q.Has(key) {
			return i
		}
	}
	return -1
}

// Has reports whether key is queued at level, or at any level when level
// is AnyLevel.
func (pq *PriorityQueue) Has(key string, level int) bool {
	if level == AnyLevel {
		return pq.GetPriority(key) != -1
	}
	if !pq.validLevel(level) {
		return false
	}
	return pq.levels[level].Has(key)
}

// Add queues key at level and reports whether the queue changed.
//
// A key that is already queued stays where it is, unless its current level
// is strictly more urgent than the requested one; then it moves to the
// requested level, at the tail.
func (pq *PriorityQueue) Add(key string, level int, score float64) bool {
	if !pq.validLevel(level) {
		return false
	}
	existing := pq.GetPriority(key)
	if existing != -1 {
		if existing >= level {
			return false
		}
		pq.levels[existing].Remove(key)
	}
	pq.levels[level].Add(key, score)
	return true
}

// Pop removes and returns a key. The level is drawn at random using the
// cutoff table, skipping the mass of leading empty levels; if the drawn
// level is empty the nearest non-empty level towards 0 is used, and failing
// that the nearest one towards the last level.
func (pq *PriorityQueue) Pop() (string, bool) {
	first := -1
	for i, q := range pq.levels {
		if !q.IsEmpty() {
			first = i
			break
		}
	}
	if first == -1 {
		return "", false
	}

	var padding float64
	if first > 0 {
		padding = pq.cutoffs[first-1]
	}
	seed := padding + pq.rand()*(1-padding)

	selected := len(pq.levels) - 1
	for i, cutoff := range pq.cutoffs {
		if seed < cutoff {
			selected = i
			break
		}
	}

	level := pq.resolveLevel(selected)
	return pq.levels[level].Pop()
}

// resolveLevel finds a non-empty level near selected. The caller guarantees
// that at least one level is non-empty.
func (pq *PriorityQueue) resolveLevel(selected int) int {
	for i := selected; i >= 0; i-- {
		if !pq.levels[i].IsEmpty() {
			return i
		}
	}
	for i := selected + 1; i < len(pq.levels); i++ {
		if !pq.levels[i].IsEmpty() {
			return i
		}
	}
	return selected
}

// Remove takes key out of whichever level holds it.
func (pq *PriorityQueue) Remove(key string) bool {
	level := pq.GetPriority(key)
	if level == -1 {
		return false
	}
	_, ok := pq.levels[level].Remove(key)
	return ok
}

// SortByScore sorts one level by tie-break score, or all of them when level
// is AnyLevel.
func (pq *PriorityQueue) SortByScore(level int) {
	if level == AnyLevel {
		for _, q := range pq.levels {
			q.SortByScore()
		}
		return
	}
	if pq.validLevel(level) {
		pq.levels[level].SortByScore()
	}
}

// Size returns the number of keys at level, or in total for AnyLevel.
func (pq *PriorityQueue) Size(level int) int {
	if level != AnyLevel {
		if !pq.validLevel(level) {
			return 0
		}
		return pq.levels[level].Size()
	}
	n := 0
	for _, q := range pq.levels {
		n += q.Size()
	}
	return n
}

// SizePerPriority returns the number of keys at each level.
func (pq *PriorityQueue) SizePerPriority() []int {
	sizes := make([]int, len(pq.levels))
	for i, q := range pq.levels {
		sizes[i] = q.Size()
	}
	return sizes
}

// Keys returns the keys of one level in pop order.
func (pq *PriorityQueue) Keys(level int) []string {
	if !pq.validLevel(level) {
		return nil
	}
	return pq.levels[level].Keys()
}

// IsEmpty reports whether every level is empty.
func (pq *PriorityQueue) IsEmpty() bool {
	for _, q := range pq.levels {
		if !q.IsEmpty() {
			return false
		}
	}
	return true
}

// Reset empties every level.
func (pq *PriorityQueue) Reset() {
	for _, q := range pq.levels {
		q.Reset()
	}
}

// Status renders the per-level counts, e.g. "level 0: 2, level 1: 0".
func (pq *PriorityQueue) Status() string {
	parts := make([]string, len(pq.levels))
	for i, q := range pq.levels {
		parts[i] = fmt.Sprintf("level %d: %d", i, q.Size())
	}
	return strings.Join(parts, ", ")
}
