package executors

import (
	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/types"
)

// aggState accumulates one aggregate over one group.
type aggState struct {
	count   int64
	sum     float64
	isFloat bool
	min     types.Value
	max     types.Value
	seen    bool
}

func (s *aggState) add(value types.Value) {
	s.count++
	if value.ValueType() == types.Float {
		s.isFloat = true
	}
	s.sum += value.ToFloat64()
	if !s.seen || value.CompareLessThan(s.min) {
		s.min = value
	}
	if !s.seen || value.CompareGreaterThan(s.max) {
		s.max = value
	}
	s.seen = true
}

func (s *aggState) result(kind plans.AggregationType) types.Value {
	switch kind {
	case plans.CountAggregate:
		return types.NewInteger(int32(s.count))
	case plans.SumAggregate:
		if s.isFloat {
			return types.NewFloat(float32(s.sum))
		}
		return types.NewInteger(int32(s.sum))
	case plans.MinAggregate:
		return s.min
	case plans.MaxAggregate:
		return s.max
	default:
		if s.count == 0 {
			return types.NewFloat(0)
		}
		return types.NewFloat(float32(s.sum / float64(s.count)))
	}
}

func newAggStates(specs []plans.AggregateSpec) []*aggState {
	states := make([]*aggState, len(specs))
	for i := range states {
		states[i] = &aggState{}
	}
	return states
}
