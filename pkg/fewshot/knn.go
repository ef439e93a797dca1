// Package fewshot is a small k-nearest-neighbour classifier over embedding vectors,
// trained incrementally from labeled regions.
package fewshot

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// DefaultNeighbors is the k used when none is configured.
const DefaultNeighbors = 3

// ErrNotReady is returned by Predict until at least two distinct classes were added.
var ErrNotReady = errors.New("classifier needs examples of at least two classes")

type sample struct {
	vec   []float64
	class string
}

// Classifier stores labeled vectors and votes among the k closest.
type Classifier struct {
	mu      sync.RWMutex
	k       int
	dim     int
	samples []sample
	classes map[string]int
}

// New returns an empty classifier. k <= 0 selects DefaultNeighbors.
func New(k int) *Classifier {
	if k <= 0 {
		k = DefaultNeighbors
	}
	return &Classifier{k: k, classes: map[string]int{}}
}

// Add stores one labeled vector. All vectors must have the same length.
func (c *Classifier) Add(vec []float64, class string) error {
	if len(vec) == 0 {
		return errors.New("empty feature vector")
	}
	if class == "" {
		return errors.New("empty class")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dim == 0 {
		c.dim = len(vec)
	} else if len(vec) != c.dim {
		return fmt.Errorf("feature length %d does not match %d", len(vec), c.dim)
	}
	c.samples = append(c.samples, sample{vec: append([]float64(nil), vec...), class: class})
	c.classes[class]++
	return nil
}

// Ready reports whether more than one class has been seen.
func (c *Classifier) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.classes) > 1
}

// Len returns the number of stored samples.
func (c *Classifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// Predict returns the majority class among the k nearest samples by Euclidean
// distance. Ties go to the lexicographically smallest class. k is capped at the
// number of samples.
func (c *Classifier) Predict(vec []float64) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.classes) < 2 {
		return "", ErrNotReady
	}
	if len(vec) != c.dim {
		return "", fmt.Errorf("feature length %d does not match %d", len(vec), c.dim)
	}

	type neighbor struct {
		dist  float64
		class string
	}
	ns := make([]neighbor, len(c.samples))
	for i, s := range c.samples {
		ns[i] = neighbor{dist: distance(vec, s.vec), class: s.class}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].dist < ns[j].dist })

	k := min(c.k, len(ns))
	votes := map[string]int{}
	for _, n := range ns[:k] {
		votes[n.class]++
	}
	best, bestVotes := "", 0
	for class, v := range votes {
		if v > bestVotes || (v == bestVotes && class < best) {
			best, bestVotes = class, v
		}
	}
	return best, nil
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
