package flow

import (
	"context"
	"log/slog"
	"strings"
)

// Actions returned by the executor. "continue" means the client should call
// again with NextNodeID, "wait" means the executor needs another user
// message (or external trigger) before advancing, "handoff" is terminal.
const (
	ActionContinue = "continue"
	ActionWait     = "wait"
	ActionHandoff  = "handoff"
	ActionFallback = "fallback"
)

const defaultMessage = "Hello!"

// Result is the outcome of executing a single node.
type Result struct {
	Message        string
	NextNodeID     string
	Action         string
	DetectedIntent string
	Handoff        *HandoffResult
}

// HandoffResult carries the routing payload handed to the human-agent side.
type HandoffResult struct {
	Department  string `json:"department"`
	AgentID     string `json:"agentId,omitempty"`
	AgentName   string `json:"agentName,omitempty"`
	AgentAvatar string `json:"agentAvatar,omitempty"`
	AssistantID string `json:"assistantId,omitempty"`
	Message     string `json:"message"`
}

// Agent is a handoff target resolved through the agent directory.
type Agent struct {
	ID          string
	Name        string
	Avatar      string
	AssistantID string
}

// AgentDirectory looks up handoff targets. Implementations are read-only
// from the executor's perspective.
type AgentDirectory interface {
	Agent(ctx context.Context, id string) (Agent, error)
}

// IntentMatcher classifies a user message against a node's configured
// intents, returning the matched label.
type IntentMatcher interface {
	Match(intents []string, message string) (string, bool)
}

// Executor runs one node at a time. It holds no conversation state; the
// client advances its own cursor with each Result's NextNodeID.
type Executor struct {
	intents  IntentMatcher
	agents   AgentDirectory
	selector EdgeSelector
}

// NewExecutor creates an Executor. agents may be nil, in which case handoff
// results carry the configured agent id without enrichment. selector may be
// nil to use the default label-based strategy.
func NewExecutor(intents IntentMatcher, agents AgentDirectory, selector EdgeSelector) *Executor {
	if selector == nil {
		selector = LabelSelector{}
	}
	return &Executor{intents: intents, agents: agents, selector: selector}
}

// Execute runs a single node against the user's message and returns the
// message to show, the routing decision, and any handoff payload.
func (x *Executor) Execute(ctx context.Context, node *Node, userMessage, language string, nodes []Node, edges []Edge) Result {
	outgoing := Outgoing(edges, node.ID)

	switch node.Type {
	case NodeWelcome, NodeMessage:
		return x.executeMessage(node, language, outgoing)
	case NodeIntent:
		return x.executeIntent(node, userMessage, language, outgoing)
	case NodeCondition:
		return x.executeCondition(node, userMessage, outgoing)
	case NodeHandoff:
		return x.executeHandoff(ctx, node, language)
	default:
		slog.Warn("unknown node type", "node_id", node.ID, "type", node.Type)
		return Result{
			Message: localize(language,
				"Sorry, something went wrong on our side. Please try again.",
				"Tyvärr gick något fel hos oss. Försök igen."),
			Action: ActionFallback,
		}
	}
}

func (x *Executor) executeMessage(node *Node, language string, outgoing []Edge) Result {
	res := Result{
		Message: resolveMessage(node.Message, language),
		Action:  ActionWait,
	}
	if next, ok := x.selector.Next(*node, outgoing, Outcome{}); ok {
		res.NextNodeID = next
		res.Action = ActionContinue
	}
	return res
}

func (x *Executor) executeIntent(node *Node, userMessage, language string, outgoing []Edge) Result {
	label, ok := x.intents.Match(node.Intent.Intents, userMessage)
	if !ok {
		return Result{
			Message: localize(language,
				"I'm not sure I understood that. Could you rephrase it?",
				"Jag är inte säker på att jag förstod. Kan du omformulera?"),
			Action: ActionWait,
		}
	}

	res := Result{
		DetectedIntent: label,
		Action:         ActionWait,
	}
	if next, ok := x.selector.Next(*node, outgoing, Outcome{Intent: label}); ok {
		res.NextNodeID = next
		res.Action = ActionContinue
	}
	return res
}

func (x *Executor) executeCondition(node *Node, userMessage string, outgoing []Edge) Result {
	met := evalCondition(node.Condition.Condition, userMessage)

	// Condition nodes always continue; with no outgoing edge the client
	// simply has nowhere to go next.
	res := Result{Action: ActionContinue}
	if next, ok := x.selector.Next(*node, outgoing, Outcome{ConditionMet: met}); ok {
		res.NextNodeID = next
	}
	return res
}

func (x *Executor) executeHandoff(ctx context.Context, node *Node, language string) Result {
	data := node.Handoff

	agentID := data.SelectedAgent
	if agentID == "" && len(data.Agents) > 0 {
		agentID = data.Agents[0]
	}

	handoff := &HandoffResult{
		Department: data.Department,
		AgentID:    agentID,
	}

	if agentID != "" && x.agents != nil {
		if agent, err := x.agents.Agent(ctx, agentID); err == nil {
			handoff.AgentName = agent.Name
			handoff.AgentAvatar = agent.Avatar
			handoff.AssistantID = agent.AssistantID
		} else {
			slog.Warn("agent lookup failed", "agent_id", agentID, "error", err)
		}
	}

	msg := data.HandoffMessage
	if msg == "" {
		msg = localize(language,
			"One moment, I'm connecting you with a member of our team.",
			"Ett ögonblick, jag kopplar dig till en medarbetare i vårt team.")
	}
	handoff.Message = msg

	return Result{
		Message: msg,
		Action:  ActionHandoff,
		Handoff: handoff,
	}
}

// languageName expands a code to the full name used as a messages-map key.
func languageName(language string) string {
	switch strings.ToLower(language) {
	case "en", "english":
		return "english"
	case "sv", "swedish":
		return "swedish"
	default:
		return strings.ToLower(language)
	}
}

// resolveMessage picks the node's message for a language. The fallback chain
// (requested key, full language name, english, en, title, "Hello!") never
// yields an empty string.
func resolveMessage(data *MessageData, language string) string {
	if data == nil {
		return defaultMessage
	}
	for _, key := range []string{language, languageName(language), "english", "en"} {
		if msg := data.Messages[key]; msg != "" {
			return msg
		}
	}
	if data.Title != "" {
		return data.Title
	}
	return defaultMessage
}

// evalCondition evaluates the condition DSL against the user's message,
// case-insensitively. "contains:<kw>" is a substring test, "equals:<val>" an
// exact match; anything else is a substring test of the whole string.
func evalCondition(condition, userMessage string) bool {
	msg := strings.ToLower(userMessage)
	cond := strings.ToLower(strings.TrimSpace(condition))

	switch {
	case strings.HasPrefix(cond, "contains:"):
		return strings.Contains(msg, strings.TrimPrefix(cond, "contains:"))
	case strings.HasPrefix(cond, "equals:"):
		return msg == strings.TrimPrefix(cond, "equals:")
	default:
		return strings.Contains(msg, cond)
	}
}

func localize(language, english, swedish string) string {
	if languageName(language) == "swedish" {
		return swedish
	}
	return english
}
