// Package planner implements the resize-parsing and delete-candidate
// resolution rules, shared so they run identically whether they are invoked
// from the dispatcher's CLUSTER_RESIZE/SCALE_IN/SCALE_OUT body or from the
// lb_member policy's pre_op: a pre-hook always observes the same plan the
// body will execute.
package planner

import (
	"math"

	"github.com/clustermgr/engine/internal/models"
)

// AdjType is the resize adjustment kind.
type AdjType string

const (
	AdjExactCapacity      AdjType = "EXACT_CAPACITY"
	AdjChangeInCapacity   AdjType = "CHANGE_IN_CAPACITY"
	AdjChangeInPercentage AdjType = "CHANGE_IN_PERCENTAGE"
)

// Bounds is the (min, max) pair a resize is validated against; either may be
// nil to mean "use the cluster's current value", and Max may be
// models.Unbounded.
type Bounds struct {
	Min *int
	Max *int
}

// Plan is the outcome of resolving a resize request against a cluster's
// current size: exactly one of Creation/Deletion is non-nil.
type Plan struct {
	NewDesired int
	Creation   *models.CreationPlan
	Deletion   *models.DeletionPlan // Candidates left empty; filled in by the caller once selected
}

// ResolveResize resolves a resize request: compute the new desired capacity
// from current size
// and the adjustment request, then clamp or reject against min/max depending
// on strict.
func ResolveResize(current int, clusterMin, clusterMax int, in models.ResizeInputs) (Plan, error) {
	if in.AdjType == "" {
		return Plan{}, models.NewBadRequest("adj_type is required")
	}
	if in.Number == nil {
		return Plan{}, models.NewBadRequest("number is required when adj_type is set")
	}

	var newDesired int
	switch AdjType(in.AdjType) {
	case AdjExactCapacity:
		if *in.Number < 0 {
			return Plan{}, models.NewInvalidParameter("number", *in.Number)
		}
		newDesired = int(*in.Number)
	case AdjChangeInCapacity:
		newDesired = current + int(*in.Number)
	case AdjChangeInPercentage:
		delta := float64(current) * (*in.Number) / 100.0
		step := 1
		if in.MinStep != nil && *in.MinStep > 0 {
			step = *in.MinStep
		}
		rounded := int(math.Round(delta))
		if rounded == 0 && delta != 0 {
			if delta > 0 {
				rounded = step
			} else {
				rounded = -step
			}
		} else if rounded != 0 {
			// honor min_step as a floor on the magnitude of the change
			if abs(rounded) < step {
				if rounded > 0 {
					rounded = step
				} else {
					rounded = -step
				}
			}
		}
		newDesired = current + rounded
	default:
		return Plan{}, models.NewInvalidParameter("adj_type", in.AdjType)
	}

	min := clusterMin
	if in.MinSize != nil {
		min = *in.MinSize
	}
	max := clusterMax
	if in.MaxSize != nil {
		max = *in.MaxSize
	}

	if newDesired < 0 {
		newDesired = 0
	}

	if min >= 0 && newDesired < min {
		if in.Strict {
			return Plan{}, models.NewBadRequest("resize to %d would violate min_size %d", newDesired, min)
		}
		newDesired = min
	}
	if max != models.Unbounded && newDesired > max {
		if in.Strict {
			return Plan{}, models.NewBadRequest("resize to %d would violate max_size %d", newDesired, max)
		}
		newDesired = max
	}

	delta := newDesired - current
	plan := Plan{NewDesired: newDesired}
	switch {
	case delta > 0:
		plan.Creation = &models.CreationPlan{Count: delta}
	case delta < 0:
		plan.Deletion = &models.DeletionPlan{Count: -delta, Candidates: []string{}}
	}
	return plan, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ResolveScale is the CLUSTER_SCALE_IN/SCALE_OUT equivalent: a signed
// CHANGE_IN_CAPACITY.
func ResolveScale(current int, clusterMin, clusterMax int, count int, scaleOut bool) (Plan, error) {
	signed := float64(count)
	if !scaleOut {
		signed = -signed
	}
	return ResolveResize(current, clusterMin, clusterMax, models.ResizeInputs{
		AdjType: string(AdjChangeInCapacity),
		Number:  &signed,
		Strict:  false,
	})
}
