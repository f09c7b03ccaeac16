// Package api exposes the chatbot core over JSON HTTP and MCP. Every
// payload is wrapped in a {success, ...} envelope; errors carry a
// human-readable message and a non-2xx status.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fooodis/chatd/internal/chatbot"
	"github.com/fooodis/chatd/internal/memory"
	"github.com/fooodis/chatd/internal/storage"
)

// AppDeps holds the services the HTTP layer routes into.
type AppDeps struct {
	Store   *storage.Store
	Chatbot *chatbot.Service
	Memory  *memory.Service // optional; nil disables the memory routes
	Token   string
}

// NewAppHandler builds the full router. The chatbot execute route is public
// (the chat widget runs unauthenticated in the visitor's browser); the
// conversation, lead, and memory routes require the admin bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/chatbot/execute-flow", handleExecuteFlow(deps))

	r.Group(func(admin chi.Router) {
		admin.Use(BearerAuth(deps.Token))

		admin.Get("/api/flows", handleListFlows(deps))
		admin.Post("/api/flows", handleSaveFlow(deps))
		admin.Get("/api/flows/{id}", handleGetFlow(deps))

		admin.Get("/api/conversations", handleListConversations(deps))
		admin.Post("/api/conversations", handleUpsertConversation(deps))
		admin.Delete("/api/conversations/{id}", handleDeleteConversation(deps))
		admin.Get("/api/conversations/{id}/messages", handleListMessages(deps))

		admin.Get("/api/users", handleListUsers(deps))
		admin.Post("/api/users", handleRegisterUser(deps))

		admin.Post("/api/memory", handleStoreMemory(deps))
		admin.Get("/api/memory", handleRecallMemory(deps))
		admin.Delete("/api/memory", handleDeleteMemory(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
