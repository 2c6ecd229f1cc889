package vbp

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

type DimensionSummary struct {
	Capacity int     `yaml:"capacity"`
	Total    int     `yaml:"total"`
	Mean     float64 `yaml:"mean"`
	StdDev   float64 `yaml:"stddev"`
	Fill     float64 `yaml:"fill"`
}

type Summary struct {
	NumItems     int                `yaml:"items"`
	Dimensions   []DimensionSummary `yaml:"dimensions"`
	LowerBound   int                `yaml:"lower_bound"`
	TripletTight bool               `yaml:"triplet_tight"`
}

// itemMatrix lays the items out as an items×dimensions matrix.
func (inst *Instance) itemMatrix() *mat.Dense {
	dims := inst.NumDimensions()
	data := make([]float64, 0, inst.NumItems()*dims)
	for _, item := range inst.Items {
		for _, v := range item {
			data = append(data, float64(v))
		}
	}
	return mat.NewDense(inst.NumItems(), dims, data)
}

// Summarize computes per-dimension statistics and the L1 lower bound on the
// number of bins, max over d of ceil(total_d / capacity_d).
func Summarize(inst *Instance) *Summary {
	s := &Summary{
		NumItems:     inst.NumItems(),
		Dimensions:   make([]DimensionSummary, inst.NumDimensions()),
		TripletTight: inst.IsTripletTight(),
	}
	for d, c := range inst.Capacities {
		s.Dimensions[d].Capacity = c
	}
	if inst.NumItems() == 0 {
		return s
	}

	m := inst.itemMatrix()
	for d := range s.Dimensions {
		col := mat.Col(nil, d, m)
		ds := &s.Dimensions[d]
		ds.Total = int(floats.Sum(col))
		ds.Mean, ds.StdDev = stat.PopMeanStdDev(col, nil)
		ds.Fill = float64(ds.Total) / float64(ds.Capacity)
		if bound := (ds.Total + ds.Capacity - 1) / ds.Capacity; bound > s.LowerBound {
			s.LowerBound = bound
		}
	}
	return s
}

func (s *Summary) String() string {
	b := new(strings.Builder)
	fmt.Fprintf(b, "N. items: %d\n", s.NumItems)
	fmt.Fprintf(b, "Lower bound: %d\n", s.LowerBound)
	fmt.Fprintf(b, "Triplet tight: %v\n", s.TripletTight)
	for d, ds := range s.Dimensions {
		fmt.Fprintf(b, "Dim %d: capacity %d, total %d, mean %.2f, stddev %.2f, fill %.2f\n",
			d, ds.Capacity, ds.Total, ds.Mean, ds.StdDev, ds.Fill)
	}
	return b.String()
}
