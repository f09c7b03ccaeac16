// Package flow holds the conversation graph model and the node executor.
// A flow is a directed graph of typed nodes, one graph per language,
// authored in the external flow editor and read-only here.
package flow

import (
	"encoding/json"
	"fmt"
)

type NodeType string

const (
	NodeWelcome   NodeType = "welcome"
	NodeMessage   NodeType = "message"
	NodeIntent    NodeType = "intent"
	NodeCondition NodeType = "condition"
	NodeHandoff   NodeType = "handoff"
)

// Edge connects two nodes. Label carries "true"/"false" on condition
// branches and an intent name on intent branches; it is empty otherwise.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Node is one step in the graph. Exactly one of the typed payload fields is
// set for a known Type; unknown types keep only the raw Data and execute as
// the safe fallback.
type Node struct {
	ID   string          `json:"id"`
	Type NodeType        `json:"type"`
	Data json.RawMessage `json:"data"`

	Message   *MessageData   `json:"-"`
	Intent    *IntentData    `json:"-"`
	Condition *ConditionData `json:"-"`
	Handoff   *HandoffData   `json:"-"`
}

// MessageData backs welcome and message nodes. Messages is keyed by
// language code or full name ("en", "english", "sv", "swedish").
type MessageData struct {
	Title    string            `json:"title"`
	Messages map[string]string `json:"messages"`
}

type IntentData struct {
	Intents []string `json:"intents"`
}

// ConditionData carries the condition DSL string:
// "contains:<kw>", "equals:<val>", or a bare substring.
type ConditionData struct {
	Condition string `json:"condition"`
}

type HandoffData struct {
	Department     string   `json:"department"`
	SelectedAgent  string   `json:"selectedAgent,omitempty"`
	Agents         []string `json:"agents,omitempty"`
	HandoffMessage string   `json:"handoffMessage,omitempty"`
}

// UnmarshalJSON decodes the node envelope and then the type-specific payload.
func (n *Node) UnmarshalJSON(data []byte) error {
	type envelope struct {
		ID   string          `json:"id"`
		Type NodeType        `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	n.ID = env.ID
	n.Type = env.Type
	n.Data = env.Data
	return n.decodePayload()
}

func (n *Node) decodePayload() error {
	raw := n.Data
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch n.Type {
	case NodeWelcome, NodeMessage:
		n.Message = &MessageData{}
		if err := json.Unmarshal(raw, n.Message); err != nil {
			return fmt.Errorf("decoding message data for node %s: %w", n.ID, err)
		}
	case NodeIntent:
		n.Intent = &IntentData{}
		if err := json.Unmarshal(raw, n.Intent); err != nil {
			return fmt.Errorf("decoding intent data for node %s: %w", n.ID, err)
		}
	case NodeCondition:
		n.Condition = &ConditionData{}
		if err := json.Unmarshal(raw, n.Condition); err != nil {
			return fmt.Errorf("decoding condition data for node %s: %w", n.ID, err)
		}
	case NodeHandoff:
		n.Handoff = &HandoffData{}
		if err := json.Unmarshal(raw, n.Handoff); err != nil {
			return fmt.Errorf("decoding handoff data for node %s: %w", n.ID, err)
		}
	default:
		// Unknown node types are kept as raw JSON and handled by the
		// executor's fallback path.
	}
	return nil
}

// ParseGraph decodes the stored nodes and connections JSON documents.
func ParseGraph(nodesJSON, connectionsJSON string) ([]Node, []Edge, error) {
	var nodes []Node
	if err := json.Unmarshal([]byte(nodesJSON), &nodes); err != nil {
		return nil, nil, fmt.Errorf("decoding nodes: %w", err)
	}
	var edges []Edge
	if connectionsJSON != "" {
		if err := json.Unmarshal([]byte(connectionsJSON), &edges); err != nil {
			return nil, nil, fmt.Errorf("decoding connections: %w", err)
		}
	}
	return nodes, edges, nil
}

// FindNode returns the node with the given id, or nil.
func FindNode(nodes []Node, id string) *Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
	}
	return nil
}

// EntryNode returns the flow's starting node: the first welcome node, or the
// first node when no welcome node exists.
func EntryNode(nodes []Node) *Node {
	for i := range nodes {
		if nodes[i].Type == NodeWelcome {
			return &nodes[i]
		}
	}
	if len(nodes) > 0 {
		return &nodes[0]
	}
	return nil
}

// Outgoing returns a node's outgoing edges in stored order.
func Outgoing(edges []Edge, from string) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}
