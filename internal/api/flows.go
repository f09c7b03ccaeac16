package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fooodis/chatd/internal/flow"
	"github.com/fooodis/chatd/internal/storage"
)

type flowJSON struct {
	ID          string          `json:"id"`
	Language    string          `json:"language"`
	Nodes       json.RawMessage `json:"nodes"`
	Connections json.RawMessage `json:"connections"`
	IsActive    bool            `json:"isActive"`
	UpdatedAt   string          `json:"updatedAt"`
}

func handleListFlows(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flows, err := deps.Store.ListFlows()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "listing flows: %v", err)
			return
		}

		views := make([]flowJSON, len(flows))
		for i, f := range flows {
			views[i] = flowJSON{
				ID:          f.ID,
				Language:    f.Language,
				Nodes:       rawOrEmptyArray(f.NodesJSON),
				Connections: rawOrEmptyArray(f.ConnectionsJSON),
				IsActive:    f.IsActive,
				UpdatedAt:   timeOrEmpty(f.UpdatedAt),
			}
		}
		respondJSON(w, map[string]any{"flows": views})
	}
}

type saveFlowRequest struct {
	ID          string          `json:"id"`
	Language    string          `json:"language"`
	Nodes       json.RawMessage `json:"nodes"`
	Connections json.RawMessage `json:"connections"`
	IsActive    *bool           `json:"isActive"`
}

// handleSaveFlow is the write path used by the flow editor. The graph is
// decoded before saving so a malformed document never becomes the active flow.
func handleSaveFlow(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req saveFlowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Language == "" {
			httpError(w, http.StatusBadRequest, "language is required")
			return
		}
		if len(req.Nodes) == 0 {
			httpError(w, http.StatusBadRequest, "nodes is required")
			return
		}
		if len(req.Connections) == 0 {
			req.Connections = json.RawMessage("[]")
		}

		nodes, _, err := flow.ParseGraph(string(req.Nodes), string(req.Connections))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid flow graph: %v", err)
			return
		}
		if len(nodes) == 0 {
			httpError(w, http.StatusBadRequest, "flow has no nodes")
			return
		}

		f := storage.Flow{
			ID:              req.ID,
			Language:        req.Language,
			NodesJSON:       string(req.Nodes),
			ConnectionsJSON: string(req.Connections),
			IsActive:        true,
			UpdatedAt:       time.Now().UTC(),
		}
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		if req.IsActive != nil {
			f.IsActive = *req.IsActive
		}

		if err := deps.Store.SaveFlow(f); err != nil {
			httpError(w, http.StatusInternalServerError, "saving flow: %v", err)
			return
		}
		respondJSON(w, map[string]any{"id": f.ID})
	}
}

func handleGetFlow(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := deps.Store.GetFlow(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "flow not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "loading flow: %v", err)
			return
		}
		respondJSON(w, map[string]any{"flow": flowJSON{
			ID:          f.ID,
			Language:    f.Language,
			Nodes:       rawOrEmptyArray(f.NodesJSON),
			Connections: rawOrEmptyArray(f.ConnectionsJSON),
			IsActive:    f.IsActive,
			UpdatedAt:   timeOrEmpty(f.UpdatedAt),
		}})
	}
}
