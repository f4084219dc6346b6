// Package pathfind implements weighted A* over a world.Grid with fog-aware
// cost estimates.
package pathfind

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions wraps option validation errors.
var ErrInvalidOptions = errors.New("invalid pathfinding options")

// DefaultDiagonalCost scales diagonal steps.
const DefaultDiagonalCost = 1.4

// OpenSetKind selects the open-set structure used by the search.
type OpenSetKind string

const (
	// OpenSetLinear scans an unindexed list for the minimum. Reference behaviour.
	OpenSetLinear OpenSetKind = "linear"
	// OpenSetHeap uses a min-heap with the same tie-break order.
	OpenSetHeap OpenSetKind = "heap"
)

// Options configures a Pathfinder.
type Options struct {
	Diagonals    bool        `yaml:"diagonals" json:"diagonals"`
	Fog          bool        `yaml:"fog" json:"fog"`
	DiagonalCost float64     `yaml:"diagonal_cost" json:"diagonal_cost"`
	OpenSet      OpenSetKind `yaml:"open_set" json:"open_set"`
}

// DefaultOptions enables diagonals and fog with the linear open set.
func DefaultOptions() Options {
	return Options{
		Diagonals:    true,
		Fog:          true,
		DiagonalCost: DefaultDiagonalCost,
		OpenSet:      OpenSetLinear,
	}
}

// Validate checks option values.
func (o Options) Validate() error {
	if o.DiagonalCost < 1 {
		return fmt.Errorf("%w: diagonal cost %.3f below 1", ErrInvalidOptions, o.DiagonalCost)
	}
	switch o.OpenSet {
	case "", OpenSetLinear, OpenSetHeap:
	default:
		return fmt.Errorf("%w: unknown open set %q", ErrInvalidOptions, o.OpenSet)
	}
	return nil
}
