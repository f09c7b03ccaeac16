package flow

// Outcome captures what executing a node produced, for edge selection.
type Outcome struct {
	// Intent is the detected intent label on intent nodes.
	Intent string
	// ConditionMet is the condition result on condition nodes.
	ConditionMet bool
}

// EdgeSelector picks the next node among a node's outgoing edges. Routing is
// a strategy separate from node execution so intent- or label-based routing
// can change without touching the executor's dispatch.
type EdgeSelector interface {
	Next(node Node, outgoing []Edge, outcome Outcome) (string, bool)
}

// LabelSelector is the default strategy:
//   - condition nodes follow the edge labeled "true"/"false" matching the
//     result, falling back to the first outgoing edge when none is labeled;
//   - intent nodes follow the edge labeled with the detected intent when one
//     exists, else the first outgoing edge (legacy flows with a single
//     unlabeled branch behave unchanged);
//   - all other nodes follow the first outgoing edge.
type LabelSelector struct{}

func (LabelSelector) Next(node Node, outgoing []Edge, outcome Outcome) (string, bool) {
	if len(outgoing) == 0 {
		return "", false
	}

	switch node.Type {
	case NodeCondition:
		want := "false"
		if outcome.ConditionMet {
			want = "true"
		}
		for _, e := range outgoing {
			if e.Label == want {
				return e.To, true
			}
		}
	case NodeIntent:
		if outcome.Intent != "" {
			for _, e := range outgoing {
				if e.Label == outcome.Intent {
					return e.To, true
				}
			}
		}
	}

	return outgoing[0].To, true
}
