package flow

import (
	"context"
	"errors"
	"testing"
)

type fakeMatcher struct {
	label string
	ok    bool
}

func (m fakeMatcher) Match(intents []string, message string) (string, bool) {
	return m.label, m.ok
}

type fakeDirectory struct {
	agents map[string]Agent
}

func (d fakeDirectory) Agent(ctx context.Context, id string) (Agent, error) {
	a, ok := d.agents[id]
	if !ok {
		return Agent{}, errors.New("agent not found")
	}
	return a, nil
}

func messageNode(id string, messages map[string]string, title string) Node {
	return Node{ID: id, Type: NodeMessage, Message: &MessageData{Title: title, Messages: messages}}
}

func TestResolveMessageFallbackChain(t *testing.T) {
	tests := []struct {
		name     string
		data     *MessageData
		language string
		want     string
	}{
		{
			name:     "exact language code",
			data:     &MessageData{Messages: map[string]string{"sv": "Hej!", "en": "Hi!"}},
			language: "sv",
			want:     "Hej!",
		},
		{
			name:     "full language name",
			data:     &MessageData{Messages: map[string]string{"swedish": "Hej!", "english": "Hi!"}},
			language: "sv",
			want:     "Hej!",
		},
		{
			name:     "falls back to english",
			data:     &MessageData{Messages: map[string]string{"english": "Hi!"}},
			language: "sv",
			want:     "Hi!",
		},
		{
			name:     "falls back to en key",
			data:     &MessageData{Messages: map[string]string{"en": "Hi!"}},
			language: "sv",
			want:     "Hi!",
		},
		{
			name:     "falls back to title",
			data:     &MessageData{Title: "Welcome aboard"},
			language: "en",
			want:     "Welcome aboard",
		},
		{
			name:     "never empty",
			data:     &MessageData{},
			language: "en",
			want:     "Hello!",
		},
		{
			name:     "nil data",
			data:     nil,
			language: "en",
			want:     "Hello!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveMessage(tt.data, tt.language)
			if got == "" {
				t.Fatal("resolveMessage returned empty string")
			}
			if got != tt.want {
				t.Errorf("resolveMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvalCondition(t *testing.T) {
	tests := []struct {
		condition string
		message   string
		want      bool
	}{
		{"contains:foo", "some FOO here", true},
		{"contains:foo", "foobar", true},
		{"contains:foo", "nothing", false},
		{"equals:Foo", "FOO", true},
		{"equals:Foo", "foobar", false},
		{"booking", "I want a BOOKING please", true},
		{"booking", "hello", false},
	}
	for _, tt := range tests {
		if got := evalCondition(tt.condition, tt.message); got != tt.want {
			t.Errorf("evalCondition(%q, %q) = %v, want %v", tt.condition, tt.message, got, tt.want)
		}
	}
}

func TestExecuteMessageNode(t *testing.T) {
	x := NewExecutor(fakeMatcher{}, nil, nil)
	node := messageNode("m1", map[string]string{"en": "Hi there"}, "")
	edges := []Edge{{From: "m1", To: "m2"}}

	res := x.Execute(context.Background(), &node, "", "en", nil, edges)
	if res.Message != "Hi there" {
		t.Errorf("message = %q", res.Message)
	}
	if res.NextNodeID != "m2" || res.Action != ActionContinue {
		t.Errorf("expected continue to m2, got %+v", res)
	}
}

func TestExecuteMessageNodeNoEdgeWaits(t *testing.T) {
	x := NewExecutor(fakeMatcher{}, nil, nil)
	node := messageNode("m1", map[string]string{"en": "Hi"}, "")

	res := x.Execute(context.Background(), &node, "", "en", nil, nil)
	if res.Action != ActionWait || res.NextNodeID != "" {
		t.Errorf("expected wait with no next node, got %+v", res)
	}
}

func TestExecuteIntentNodeMatch(t *testing.T) {
	x := NewExecutor(fakeMatcher{label: "menu-help", ok: true}, nil, nil)
	node := Node{ID: "i1", Type: NodeIntent, Intent: &IntentData{Intents: []string{"menu-help"}}}
	edges := []Edge{{From: "i1", To: "h1"}}

	res := x.Execute(context.Background(), &node, "what's on the menu?", "en", nil, edges)
	if res.DetectedIntent != "menu-help" {
		t.Errorf("detected intent = %q", res.DetectedIntent)
	}
	if res.NextNodeID != "h1" || res.Action != ActionContinue {
		t.Errorf("expected continue to h1, got %+v", res)
	}
}

func TestExecuteIntentNodeNoMatchWaits(t *testing.T) {
	x := NewExecutor(fakeMatcher{ok: false}, nil, nil)
	node := Node{ID: "i1", Type: NodeIntent, Intent: &IntentData{Intents: []string{"menu-help"}}}
	edges := []Edge{{From: "i1", To: "h1"}}

	res := x.Execute(context.Background(), &node, "gibberish", "en", nil, edges)
	if res.Action != ActionWait {
		t.Errorf("action = %q, want wait", res.Action)
	}
	if res.NextNodeID != "" {
		t.Errorf("unexpected next node %q", res.NextNodeID)
	}
	if res.Message == "" {
		t.Error("expected a clarification prompt")
	}
}

// Intent edges labeled with intent names route by the detected intent.
func TestExecuteIntentNodeLabeledRouting(t *testing.T) {
	x := NewExecutor(fakeMatcher{label: "billing-question", ok: true}, nil, nil)
	node := Node{ID: "i1", Type: NodeIntent, Intent: &IntentData{Intents: []string{"menu-help", "billing-question"}}}
	edges := []Edge{
		{From: "i1", To: "menu-branch", Label: "menu-help"},
		{From: "i1", To: "billing-branch", Label: "billing-question"},
	}

	res := x.Execute(context.Background(), &node, "a billing error", "en", nil, edges)
	if res.NextNodeID != "billing-branch" {
		t.Errorf("routed to %q, want billing-branch", res.NextNodeID)
	}
}

func TestExecuteConditionNode(t *testing.T) {
	x := NewExecutor(fakeMatcher{}, nil, nil)
	node := Node{ID: "c1", Type: NodeCondition, Condition: &ConditionData{Condition: "contains:vegan"}}
	edges := []Edge{
		{From: "c1", To: "no-branch", Label: "false"},
		{From: "c1", To: "yes-branch", Label: "true"},
	}

	res := x.Execute(context.Background(), &node, "do you have VEGAN options?", "en", nil, edges)
	if res.NextNodeID != "yes-branch" {
		t.Errorf("true branch: routed to %q", res.NextNodeID)
	}
	if res.Action != ActionContinue {
		t.Errorf("action = %q, want continue", res.Action)
	}

	res = x.Execute(context.Background(), &node, "just a table please", "en", nil, edges)
	if res.NextNodeID != "no-branch" {
		t.Errorf("false branch: routed to %q", res.NextNodeID)
	}
	if res.Action != ActionContinue {
		t.Errorf("action = %q, want continue", res.Action)
	}
}

func TestExecuteConditionNodeUnlabeledFallsBack(t *testing.T) {
	x := NewExecutor(fakeMatcher{}, nil, nil)
	node := Node{ID: "c1", Type: NodeCondition, Condition: &ConditionData{Condition: "contains:vegan"}}
	edges := []Edge{{From: "c1", To: "only-branch"}}

	res := x.Execute(context.Background(), &node, "anything", "en", nil, edges)
	if res.NextNodeID != "only-branch" {
		t.Errorf("routed to %q, want only-branch", res.NextNodeID)
	}
}

func TestExecuteHandoffNode(t *testing.T) {
	dir := fakeDirectory{agents: map[string]Agent{
		"a1": {ID: "a1", Name: "Maja", Avatar: "maja.png", AssistantID: "asst-1"},
	}}
	x := NewExecutor(fakeMatcher{}, dir, nil)
	node := Node{ID: "h1", Type: NodeHandoff, Handoff: &HandoffData{
		Department: "support",
		Agents:     []string{"a1", "a2"},
	}}

	res := x.Execute(context.Background(), &node, "", "en", nil, nil)
	if res.Action != ActionHandoff {
		t.Fatalf("action = %q, want handoff", res.Action)
	}
	if res.Handoff == nil {
		t.Fatal("missing handoff payload")
	}
	if res.Handoff.Department != "support" {
		t.Errorf("department = %q", res.Handoff.Department)
	}
	if res.Handoff.AgentID != "a1" {
		t.Errorf("agent id = %q, want first configured agent", res.Handoff.AgentID)
	}
	if res.Handoff.AgentName != "Maja" || res.Handoff.AssistantID != "asst-1" {
		t.Errorf("agent not enriched: %+v", res.Handoff)
	}
	if res.Message == "" {
		t.Error("expected a handoff message")
	}
}

func TestExecuteHandoffSelectedAgentWins(t *testing.T) {
	x := NewExecutor(fakeMatcher{}, nil, nil)
	node := Node{ID: "h1", Type: NodeHandoff, Handoff: &HandoffData{
		Department:     "sales",
		SelectedAgent:  "a9",
		Agents:         []string{"a1"},
		HandoffMessage: "Our sales team will take it from here.",
	}}

	res := x.Execute(context.Background(), &node, "", "en", nil, nil)
	if res.Handoff.AgentID != "a9" {
		t.Errorf("agent id = %q, want explicitly selected a9", res.Handoff.AgentID)
	}
	if res.Message != "Our sales team will take it from here." {
		t.Errorf("custom handoff message not used: %q", res.Message)
	}
}

func TestExecuteHandoffSwedishDefaultMessage(t *testing.T) {
	x := NewExecutor(fakeMatcher{}, nil, nil)
	node := Node{ID: "h1", Type: NodeHandoff, Handoff: &HandoffData{Department: "support"}}

	res := x.Execute(context.Background(), &node, "", "sv", nil, nil)
	if res.Message == "" || res.Message == "One moment, I'm connecting you with a member of our team." {
		t.Errorf("expected localized swedish message, got %q", res.Message)
	}
}

func TestExecuteUnknownNodeType(t *testing.T) {
	x := NewExecutor(fakeMatcher{}, nil, nil)
	node := Node{ID: "u1", Type: NodeType("carousel")}

	res := x.Execute(context.Background(), &node, "", "en", nil, []Edge{{From: "u1", To: "m1"}})
	if res.Action != ActionFallback {
		t.Errorf("action = %q, want fallback", res.Action)
	}
	if res.NextNodeID != "" {
		t.Errorf("fallback should not advance, got %q", res.NextNodeID)
	}
	if res.Message == "" {
		t.Error("expected an apology message")
	}
}
