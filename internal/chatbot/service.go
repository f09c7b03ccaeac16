// Package chatbot ties the flow store, node executor, and conversation
// recording together behind the execute-flow operation. Each call is a
// stateless single shot: the client holds the cursor and sends it back.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fooodis/chatd/internal/flow"
	"github.com/fooodis/chatd/internal/storage"
)

var (
	// ErrNoActiveFlow means no active flow exists for the requested
	// language. A configuration problem: surfaced, never retried.
	ErrNoActiveFlow = errors.New("no active chatbot flow for language")
	// ErrNodeNotFound means the client's cursor points at a node that is
	// not in the active flow; the client must restart from the welcome node.
	ErrNodeNotFound = errors.New("node not found in active flow")
	// ErrEmptyFlow means the active flow has no nodes at all.
	ErrEmptyFlow = errors.New("active flow has no nodes")
)

// FlowStore loads the flow document for a language.
type FlowStore interface {
	ActiveFlow(language string) (storage.Flow, error)
}

// Recorder persists the conversation side effects of a flow step.
type Recorder interface {
	UpsertConversation(patch storage.ConversationPatch) (storage.Conversation, error)
	ActiveConversationByVisitor(visitorID string) (storage.Conversation, error)
	AppendMessage(m storage.Message) (storage.Message, error)
}

// Request is one execute-flow call from the chat widget.
type Request struct {
	CurrentNodeID  string `json:"currentNodeId,omitempty"`
	UserMessage    string `json:"userMessage"`
	Language       string `json:"language"`
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Response is the executed step returned to the chat widget.
type Response struct {
	NodeID         string              `json:"nodeId"`
	NodeType       string              `json:"nodeType"`
	Message        string              `json:"message,omitempty"`
	NextNodeID     string              `json:"nextNodeId,omitempty"`
	Action         string              `json:"action"`
	DetectedIntent string              `json:"detectedIntent,omitempty"`
	HandoffData    *flow.HandoffResult `json:"handoffData,omitempty"`
	ConversationID string              `json:"conversationId,omitempty"`
}

// Service executes flow steps. recorder may be nil to disable conversation
// persistence (used by some tests).
type Service struct {
	flows           FlowStore
	executor        *flow.Executor
	recorder        Recorder
	defaultLanguage string
	logger          *slog.Logger
}

// NewService creates a chatbot Service.
func NewService(flows FlowStore, executor *flow.Executor, recorder Recorder, defaultLanguage string) *Service {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Service{
		flows:           flows,
		executor:        executor,
		recorder:        recorder,
		defaultLanguage: defaultLanguage,
		logger:          slog.Default(),
	}
}

// ExecuteFlow runs one step of the active flow for the request's language.
func (s *Service) ExecuteFlow(ctx context.Context, req Request) (Response, error) {
	language := req.Language
	if language == "" {
		language = s.defaultLanguage
	}

	stored, err := s.flows.ActiveFlow(language)
	if errors.Is(err, storage.ErrNotFound) {
		return Response{}, fmt.Errorf("%w: %s", ErrNoActiveFlow, language)
	}
	if err != nil {
		return Response{}, fmt.Errorf("loading flow for %s: %w", language, err)
	}

	nodes, edges, err := flow.ParseGraph(stored.NodesJSON, stored.ConnectionsJSON)
	if err != nil {
		return Response{}, fmt.Errorf("parsing flow %s: %w", stored.ID, err)
	}

	var node *flow.Node
	if req.CurrentNodeID == "" {
		node = flow.EntryNode(nodes)
		if node == nil {
			return Response{}, fmt.Errorf("%w: %s", ErrEmptyFlow, stored.ID)
		}
	} else {
		node = flow.FindNode(nodes, req.CurrentNodeID)
		if node == nil {
			return Response{}, fmt.Errorf("%w: %s", ErrNodeNotFound, req.CurrentNodeID)
		}
	}

	result := s.executor.Execute(ctx, node, req.UserMessage, language, nodes, edges)

	resp := Response{
		NodeID:         node.ID,
		NodeType:       string(node.Type),
		Message:        result.Message,
		NextNodeID:     result.NextNodeID,
		Action:         result.Action,
		DetectedIntent: result.DetectedIntent,
		HandoffData:    result.Handoff,
	}
	resp.ConversationID = s.record(req, language, node, result)
	return resp, nil
}

// record persists the exchange on the visitor's conversation. Best-effort:
// recording failures are logged and never fail the flow step.
func (s *Service) record(req Request, language string, node *flow.Node, result flow.Result) string {
	if s.recorder == nil || req.SessionID == "" {
		return req.ConversationID
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conv, err := s.recorder.ActiveConversationByVisitor(req.SessionID)
		switch {
		case err == nil:
			conversationID = conv.ID
		case errors.Is(err, storage.ErrNotFound):
			created, err := s.recorder.UpsertConversation(storage.ConversationPatch{
				VisitorID: &req.SessionID,
				Language:  &language,
			})
			if err != nil {
				s.logger.Warn("creating conversation failed", "visitor_id", req.SessionID, "error", err)
				return ""
			}
			conversationID = created.ID
		default:
			s.logger.Warn("looking up conversation failed", "visitor_id", req.SessionID, "error", err)
			return ""
		}
	}

	if req.UserMessage != "" {
		if _, err := s.recorder.AppendMessage(storage.Message{
			ConversationID: conversationID,
			Sender:         "visitor",
			Content:        req.UserMessage,
			NodeID:         node.ID,
		}); err != nil {
			s.logger.Warn("recording visitor message failed", "conversation_id", conversationID, "error", err)
		}
	}
	if result.Message != "" {
		if _, err := s.recorder.AppendMessage(storage.Message{
			ConversationID: conversationID,
			Sender:         "bot",
			Content:        result.Message,
			NodeID:         node.ID,
		}); err != nil {
			s.logger.Warn("recording bot message failed", "conversation_id", conversationID, "error", err)
		}
	}

	if result.Action == flow.ActionHandoff {
		status := "handoff"
		if _, err := s.recorder.UpsertConversation(storage.ConversationPatch{
			ID:     conversationID,
			Status: &status,
		}); err != nil {
			s.logger.Warn("marking conversation handoff failed", "conversation_id", conversationID, "error", err)
		}
	}

	return conversationID
}
