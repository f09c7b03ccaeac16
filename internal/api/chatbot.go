package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fooodis/chatd/internal/chatbot"
)

type executeFlowResponse struct {
	Success bool `json:"success"`
	chatbot.Response
}

func handleExecuteFlow(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatbot.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		resp, err := deps.Chatbot.ExecuteFlow(r.Context(), req)
		switch {
		case errors.Is(err, chatbot.ErrNoActiveFlow), errors.Is(err, chatbot.ErrEmptyFlow):
			httpError(w, http.StatusNotFound, "%v", err)
			return
		case errors.Is(err, chatbot.ErrNodeNotFound):
			httpError(w, http.StatusNotFound, "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "executing flow: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(executeFlowResponse{Success: true, Response: resp})
	}
}
