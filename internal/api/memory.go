package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fooodis/chatd/internal/embed"
	"github.com/fooodis/chatd/internal/memory"
	"github.com/fooodis/chatd/internal/storage"
)

type storeMemoryRequest struct {
	Content        string         `json:"content"`
	ContentType    string         `json:"contentType"` // "", "text", or "pdf" (base64)
	Type           string         `json:"type"`
	ConversationID string         `json:"conversationId"`
	Metadata       map[string]any `json:"metadata"`
}

func handleStoreMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Memory == nil {
			httpError(w, http.StatusServiceUnavailable, "memory is not enabled")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize*8)
		defer r.Body.Close()

		var req storeMemoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		content, err := memory.ExtractContent(req.Content, req.ContentType)
		if err != nil {
			httpError(w, http.StatusBadRequest, "extracting content: %v", err)
			return
		}

		id, err := deps.Memory.Remember(r.Context(), content, req.Type, req.ConversationID, req.Metadata)
		switch {
		case errors.Is(err, memory.ErrEmptyContent), errors.Is(err, memory.ErrInvalidType):
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		case errors.Is(err, embed.ErrNotConfigured):
			httpError(w, http.StatusServiceUnavailable, "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "storing memory: %v", err)
			return
		}
		respondJSON(w, map[string]any{"id": id})
	}
}

func handleRecallMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Memory == nil {
			httpError(w, http.StatusServiceUnavailable, "memory is not enabled")
			return
		}
		query := r.URL.Query().Get("query")
		if query == "" {
			httpError(w, http.StatusBadRequest, "query is required")
			return
		}
		memType := r.URL.Query().Get("type")
		conversationID := r.URL.Query().Get("conversationId")
		limit := parseIntParam(r, "limit", 5, 50)

		results, err := deps.Memory.Recall(r.Context(), query, memType, conversationID, limit)
		if errors.Is(err, embed.ErrNotConfigured) {
			httpError(w, http.StatusServiceUnavailable, "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "recalling memories: %v", err)
			return
		}
		if results == nil {
			results = []memory.Result{}
		}
		respondJSON(w, map[string]any{"memories": results})
	}
}

func handleDeleteMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Memory == nil {
			httpError(w, http.StatusServiceUnavailable, "memory is not enabled")
			return
		}
		id := r.URL.Query().Get("id")
		conversationID := r.URL.Query().Get("conversationId")

		switch {
		case id != "":
			err := deps.Memory.Forget(r.Context(), id)
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "memory not found")
				return
			}
			if err != nil {
				httpError(w, http.StatusInternalServerError, "deleting memory: %v", err)
				return
			}
			respondJSON(w, map[string]any{"deleted": 1})
		case conversationID != "":
			n, err := deps.Memory.ForgetConversation(r.Context(), conversationID)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "deleting memories: %v", err)
				return
			}
			respondJSON(w, map[string]any{"deleted": n})
		default:
			// Clearing everything requires elevated auth that does not exist.
			httpError(w, http.StatusForbidden, "%v", memory.ErrBulkClearNotAllowed)
		}
	}
}
