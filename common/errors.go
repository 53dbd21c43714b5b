package common

import "github.com/cockroachdb/errors"

// Error taxonomy of the planner/executor core. Structural problems are fatal
// to the query and marked with one of these sentinels; estimation problems
// (missing or stale statistics) are absorbed with defaults and never surface
// as errors.
var (
	// ErrNotFound: a relation, column or index id is unknown to the catalog.
	ErrNotFound = errors.New("object not found in catalog")
	// ErrPlanning: no viable path could be generated for a relation or join.
	ErrPlanning = errors.New("planning failed")
	// ErrStatisticsUnavailable: a relation has never been analyzed. Callers
	// inside the planner recover from this with default assumptions.
	ErrStatisticsUnavailable = errors.New("statistics unavailable")
	// ErrExecution: a runtime failure while producing rows (bad coercion,
	// division by zero in a projected expression).
	ErrExecution = errors.New("execution failed")
	// ErrResourceExhausted: a memory budget was exceeded. Executors recover
	// by spilling; the sentinel only escapes when spilling is impossible.
	ErrResourceExhausted = errors.New("resource budget exhausted")
)

func NewPlanningError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrPlanning)
}

func NewExecutionError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrExecution)
}

func NewNotFoundError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}
