package vbp

import (
	"fmt"
	"math/rand/v2"
)

const maxDecomposeAttempts = 1000

// Generator builds an instance from a random source. Implementations validate
// their arguments before drawing anything from rng.
type Generator interface {
	Generate(rng *rand.Rand, itemCount int, capacities []int) (*Instance, error)
}

type UniformGenerator struct{}

type TripletGenerator struct{}

func (UniformGenerator) Generate(rng *rand.Rand, itemCount int, capacities []int) (*Instance, error) {
	return GenerateUniform(rng, itemCount, capacities)
}

func (TripletGenerator) Generate(rng *rand.Rand, itemCount int, capacities []int) (*Instance, error) {
	return GenerateTriplet(rng, itemCount, capacities)
}

func GeneratorFor(dist Distribution) (Generator, error) {
	switch dist {
	case Uniform:
		return UniformGenerator{}, nil
	case Triplet:
		return TripletGenerator{}, nil
	}
	return nil, fmt.Errorf("%w: unknown distribution %q", ErrInvalidArgument, dist)
}

// randInt draws uniformly from [lo, hi].
func randInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

func checkArgs(itemCount int, capacities []int, minCapacity int) error {
	if itemCount < 0 {
		return fmt.Errorf("%w: item count %d is negative", ErrInvalidArgument, itemCount)
	}
	if len(capacities) == 0 {
		return fmt.Errorf("%w: at least one dimension is required", ErrInvalidArgument)
	}
	for d, c := range capacities {
		if c < minCapacity {
			return fmt.Errorf("%w: capacity %d of dimension %d is below %d", ErrInvalidArgument, c, d, minCapacity)
		}
	}
	return nil
}

// Decompose splits total into three positive parts summing to total. The first
// part is drawn from [total/2, total] and the second from [rest/2, rest], which
// biases the triple toward one large item. Draws leaving a zero part are
// redrawn.
func Decompose(rng *rand.Rand, total int) (a, b, c int, err error) {
	if total < 3 {
		return 0, 0, 0, fmt.Errorf("%w: cannot split %d into three positive parts", ErrInvalidArgument, total)
	}
	for range maxDecomposeAttempts {
		a = randInt(rng, total/2, total)
		rest := total - a
		b = randInt(rng, rest/2, rest)
		c = rest - b
		if a > 0 && b > 0 && c > 0 {
			return a, b, c, nil
		}
	}
	return 0, 0, 0, fmt.Errorf("%w: no positive split of %d after %d draws", ErrDegenerateDecomposition, total, maxDecomposeAttempts)
}

// GenerateUniform draws every size independently from [1, capacities[d]].
// The dimension count is len(capacities).
func GenerateUniform(rng *rand.Rand, itemCount int, capacities []int) (*Instance, error) {
	if err := checkArgs(itemCount, capacities, 1); err != nil {
		return nil, err
	}

	inst := &Instance{
		Capacities: append([]int(nil), capacities...),
		Items:      make([][]int, itemCount),
	}
	for i := range inst.Items {
		item := make([]int, len(capacities))
		for d, c := range capacities {
			item[d] = randInt(rng, 1, c)
		}
		inst.Items[i] = item
	}
	return inst, nil
}

// TripletItemCount is the number of items GenerateTriplet emits for a
// requested count: only whole triples are kept, the remainder is dropped.
func TripletItemCount(itemCount int) int {
	return itemCount / 3 * 3
}

// GenerateTriplet builds itemCount/3 groups of three consecutive items whose
// sizes sum to the capacity in every dimension. The dimension count is
// len(capacities).
func GenerateTriplet(rng *rand.Rand, itemCount int, capacities []int) (*Instance, error) {
	if err := checkArgs(itemCount, capacities, 3); err != nil {
		return nil, err
	}

	dims := len(capacities)
	inst := &Instance{
		Capacities: append([]int(nil), capacities...),
		Items:      make([][]int, 0, TripletItemCount(itemCount)),
	}
	for range itemCount / 3 {
		group := [3][]int{make([]int, dims), make([]int, dims), make([]int, dims)}
		for d, c := range capacities {
			a, b, third, err := Decompose(rng, c)
			if err != nil {
				return nil, fmt.Errorf("dimension %d: %w", d, err)
			}
			group[0][d], group[1][d], group[2][d] = a, b, third
		}
		inst.Items = append(inst.Items, group[0], group[1], group[2])
	}
	return inst, nil
}

// IsTripletTight reports whether the items form consecutive triples that fill
// every dimension exactly.
func (inst *Instance) IsTripletTight() bool {
	if len(inst.Items)%3 != 0 {
		return false
	}
	for g := 0; g < len(inst.Items); g += 3 {
		for d, c := range inst.Capacities {
			if inst.Items[g][d]+inst.Items[g+1][d]+inst.Items[g+2][d] != c {
				return false
			}
		}
	}
	return true
}
