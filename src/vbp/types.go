package vbp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrDegenerateDecomposition = errors.New("degenerate decomposition")
	ErrIO                      = errors.New("i/o failure")
	ErrMalformed               = errors.New("malformed instance")
)

// Instance is one vector bin packing problem: a bin capacity per dimension and
// the size vector of every item.
type Instance struct {
	Capacities []int
	Items      [][]int
}

func (inst *Instance) NumDimensions() int {
	return len(inst.Capacities)
}

func (inst *Instance) NumItems() int {
	return len(inst.Items)
}

type Distribution string

const (
	Uniform Distribution = "uniform"
	Triplet Distribution = "triplet"
)

// Dir is the subdirectory instances of this distribution are stored under.
func (d Distribution) Dir() string {
	switch d {
	case Uniform:
		return "u"
	case Triplet:
		return "t"
	}
	return string(d)
}

func ParseDistribution(s string) (Distribution, error) {
	switch d := Distribution(strings.ToLower(strings.TrimSpace(s))); d {
	case Uniform, Triplet:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown distribution %q", ErrInvalidArgument, s)
}

// FileName follows the {uniform|triplet}_instance_{n}_{dim}[_{rep}].vbp
// convention. A negative rep omits the suffix.
func FileName(dist Distribution, itemCount, dims, rep int) string {
	if rep < 0 {
		return fmt.Sprintf("%s_instance_%d_%d.vbp", dist, itemCount, dims)
	}
	return fmt.Sprintf("%s_instance_%d_%d_%d.vbp", dist, itemCount, dims, rep)
}

func (inst *Instance) String() string {
	s := new(strings.Builder)
	s.WriteString(fmt.Sprintf("N. dimensions: %d\n", inst.NumDimensions()))
	s.WriteString(fmt.Sprintf("Capacities: %v\n", inst.Capacities))
	s.WriteString(fmt.Sprintf("N. items: %d\n", inst.NumItems()))
	for i, item := range inst.Items {
		s.WriteString(fmt.Sprintf("Item %d: %v\n", i, item))
	}
	return s.String()
}
