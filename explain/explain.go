// Package explain renders plan trees for inspection. Formatting never
// mutates the plan; formatting the same unexecuted plan twice yields byte
// identical output.
package explain

import (
	"fmt"
	"strings"

	"github.com/golang-collections/collections/stack"

	"github.com/ryogrid/KiriDB/execution/executors"
	"github.com/ryogrid/KiriDB/execution/plans"
)

// Node is one formatted plan node: the planner's estimates, and the runtime
// actuals when the plan has been executed with instrumentation.
type Node struct {
	NodeType      string
	StartupCost   float64
	TotalCost     float64
	EstimatedRows float64
	// the estimates rest on default assumptions, not collected statistics
	Defaulted bool

	HasActuals   bool
	ActualRows   uint64
	ActualTimeMs float64
	Spilled      bool

	Children []*Node
}

// Format converts a plan tree into its explain tree, estimates only.
func Format(plan plans.Plan) *Node {
	return build(plan, nil)
}

// FormatWithActuals additionally attaches per-node instrumentation recorded
// in the executor context during a run.
func FormatWithActuals(plan plans.Plan, ctx *executors.ExecutorContext) *Node {
	return build(plan, ctx)
}

func build(plan plans.Plan, ctx *executors.ExecutorContext) *Node {
	est := plan.GetEstimate()
	node := &Node{
		NodeType:      plan.GetType().String(),
		StartupCost:   est.StartupCost,
		TotalCost:     est.TotalCost,
		EstimatedRows: est.Rows,
		Defaulted:     est.Defaulted,
	}
	if ctx != nil {
		if stats := ctx.LookupStats(plan); stats != nil {
			node.HasActuals = true
			node.ActualRows = stats.ActualRows
			node.ActualTimeMs = stats.ActualTimeMs
			node.Spilled = stats.Spilled
		}
	}
	for _, child := range plan.GetChildren() {
		node.Children = append(node.Children, build(child, ctx))
	}
	return node
}

type renderFrame struct {
	node  *Node
	depth int
}

// Render produces the deterministic text form, one node per line, children
// indented under their parent.
func Render(root *Node) string {
	var b strings.Builder

	pending := stack.New()
	pending.Push(renderFrame{node: root, depth: 0})
	for pending.Len() > 0 {
		frame := pending.Pop().(renderFrame)

		if frame.depth > 0 {
			b.WriteString(strings.Repeat("  ", frame.depth))
			b.WriteString("-> ")
		}
		b.WriteString(renderLine(frame.node))
		b.WriteByte('\n')

		for i := len(frame.node.Children) - 1; i >= 0; i-- {
			pending.Push(renderFrame{node: frame.node.Children[i], depth: frame.depth + 1})
		}
	}
	return b.String()
}

func renderLine(node *Node) string {
	line := fmt.Sprintf("%s  (cost=%.2f..%.2f rows=%.0f)",
		node.NodeType, node.StartupCost, node.TotalCost, node.EstimatedRows)
	if node.Defaulted {
		line += " (estimate: default)"
	}
	if node.HasActuals {
		line += fmt.Sprintf(" (actual rows=%d time=%.3fms)", node.ActualRows, node.ActualTimeMs)
		if node.Spilled {
			line += " (spilled)"
		}
	}
	return line
}
