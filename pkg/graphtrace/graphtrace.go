// Package graphtrace implements the Graph Tracer (spec.md §4.4): a
// reverse breadth-first traversal from the save node that produces a
// distance map and a deterministic evaluation order. It is grounded
// on the teacher's traversal idiom in pkg/query/parallel_traversal.go
// (BFS over storage.Node/Edge, visited-set via map), simplified to the
// sequential, single-call semantics spec.md §5 requires ("Scheduling
// model: single-threaded cooperative within one save invocation") —
// parallelizing a single small graph traversal would buy nothing and
// would threaten the ascending-NodeID tie-break determinism invariant.
package graphtrace

import (
	"fmt"
	"sort"

	"github.com/graphforge/nodemeta/pkg/capterr"
	"github.com/graphforge/nodemeta/pkg/graphmodel"
	"github.com/graphforge/nodemeta/pkg/logging"
)

// Result is the TraceResult of spec.md §3.
type Result struct {
	Distance map[graphmodel.NodeID]int
	Order    []graphmodel.NodeID
}

// Trace performs a reverse BFS from saveNode following input
// references, matching the original's collections.deque algorithm
// (graph shape error dangling references are logged and skipped, not
// fatal, per spec.md §7).
func Trace(g graphmodel.Graph, saveNode graphmodel.NodeID, logger logging.Logger) (Result, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	if _, ok := g.Get(saveNode); !ok {
		return Result{Distance: map[graphmodel.NodeID]int{}}, fmt.Errorf("%w: save node %q not found in graph", capterr.ErrGraphShape, saveNode)
	}

	distance := map[graphmodel.NodeID]int{saveNode: 0}
	queue := []graphmodel.NodeID{saveNode}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node, ok := g.Get(current)
		if !ok {
			continue
		}
		d := distance[current]

		// Deterministic expansion: visit this node's inputs in a
		// stable (sorted) order so that, combined with the final
		// ascending-NodeID tiebreak in Order, two runs over an equal
		// graph always produce an equal sequence (spec.md §4.4,
		// "Guarantees": "the output is deterministic").
		names := inputNames(node)
		for _, name := range names {
			ref, isRef := node.Inputs[name].IsRef()
			if !isRef {
				continue
			}
			if _, exists := g.Get(ref.SourceNodeID); !exists {
				logger.Warn("dangling graph reference", logging.NodeID(string(current)), logging.SemanticField(name))
				continue
			}
			if _, seen := distance[ref.SourceNodeID]; seen {
				continue
			}
			distance[ref.SourceNodeID] = d + 1
			queue = append(queue, ref.SourceNodeID)
		}
	}

	order := make([]graphmodel.NodeID, 0, len(distance))
	for id := range distance {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		di, dj := distance[order[i]], distance[order[j]]
		if di != dj {
			return di < dj
		}
		return order[i] < order[j]
	})

	return Result{Distance: distance, Order: order}, nil
}

func inputNames(n graphmodel.Node) []string {
	names := make([]string, 0, len(n.Inputs))
	for name := range n.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
