package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fooodis/chatd/internal/storage"
)

type conversationJSON struct {
	ID             string `json:"id"`
	VisitorID      string `json:"visitorId"`
	UserID         string `json:"userId,omitempty"`
	ThreadID       string `json:"threadId,omitempty"`
	UserName       string `json:"userName,omitempty"`
	UserEmail      string `json:"userEmail,omitempty"`
	UserPhone      string `json:"userPhone,omitempty"`
	RestaurantName string `json:"restaurantName,omitempty"`
	UserType       string `json:"userType,omitempty"`
	Language       string `json:"language"`
	LanguageFlag   string `json:"languageFlag"`
	Status         string `json:"status"`
	IsRegistered   bool   `json:"isRegistered"`
	Rating         int    `json:"rating,omitempty"`
	RatingFeedback string `json:"ratingFeedback,omitempty"`
	MessageCount   int    `json:"messageCount"`
	FirstMessageAt string `json:"firstMessageAt,omitempty"`
	LastMessageAt  string `json:"lastMessageAt,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func conversationView(c storage.Conversation) conversationJSON {
	return conversationJSON{
		ID:             c.ID,
		VisitorID:      c.VisitorID,
		UserID:         c.UserID,
		ThreadID:       c.ThreadID,
		UserName:       c.UserName,
		UserEmail:      c.UserEmail,
		UserPhone:      c.UserPhone,
		RestaurantName: c.RestaurantName,
		UserType:       c.UserType,
		Language:       c.Language,
		LanguageFlag:   c.LanguageFlag,
		Status:         c.Status,
		IsRegistered:   c.IsRegistered,
		Rating:         c.Rating,
		RatingFeedback: c.RatingFeedback,
		MessageCount:   c.MessageCount,
		FirstMessageAt: timeOrEmpty(c.FirstMessageAt),
		LastMessageAt:  timeOrEmpty(c.LastMessageAt),
		CreatedAt:      timeOrEmpty(c.CreatedAt),
		UpdatedAt:      timeOrEmpty(c.UpdatedAt),
	}
}

type messageJSON struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"`
	Content        string `json:"content"`
	NodeID         string `json:"nodeId,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

func handleListConversations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		userID := r.URL.Query().Get("userId")
		limit := parseIntParam(r, "limit", 50, 200)
		offset := parseIntParam(r, "offset", 0, 0)

		conversations, err := deps.Store.ListConversations(status, userID, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "listing conversations: %v", err)
			return
		}

		views := make([]conversationJSON, len(conversations))
		for i, c := range conversations {
			views[i] = conversationView(c)
		}
		respondJSON(w, map[string]any{"conversations": views})
	}
}

type upsertConversationRequest struct {
	ID             string  `json:"id,omitempty"`
	VisitorID      *string `json:"visitorId,omitempty"`
	UserID         *string `json:"userId,omitempty"`
	ThreadID       *string `json:"threadId,omitempty"`
	UserName       *string `json:"userName,omitempty"`
	UserEmail      *string `json:"userEmail,omitempty"`
	UserPhone      *string `json:"userPhone,omitempty"`
	RestaurantName *string `json:"restaurantName,omitempty"`
	UserType       *string `json:"userType,omitempty"`
	Language       *string `json:"language,omitempty"`
	Status         *string `json:"status,omitempty"`
	IsRegistered   *bool   `json:"isRegistered,omitempty"`
	Rating         *int    `json:"rating,omitempty"`
	RatingFeedback *string `json:"ratingFeedback,omitempty"`
}

func handleUpsertConversation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req upsertConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		conv, err := deps.Store.UpsertConversation(storage.ConversationPatch{
			ID:             req.ID,
			VisitorID:      req.VisitorID,
			UserID:         req.UserID,
			ThreadID:       req.ThreadID,
			UserName:       req.UserName,
			UserEmail:      req.UserEmail,
			UserPhone:      req.UserPhone,
			RestaurantName: req.RestaurantName,
			UserType:       req.UserType,
			Language:       req.Language,
			Status:         req.Status,
			IsRegistered:   req.IsRegistered,
			Rating:         req.Rating,
			RatingFeedback: req.RatingFeedback,
		})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "saving conversation: %v", err)
			return
		}
		respondJSON(w, map[string]any{"conversation": conversationView(conv)})
	}
}

func handleDeleteConversation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// Memories tied to the conversation go too, from both stores.
		if deps.Memory != nil {
			if _, err := deps.Memory.ForgetConversation(r.Context(), id); err != nil {
				httpError(w, http.StatusInternalServerError, "deleting conversation memories: %v", err)
				return
			}
		}

		err := deps.Store.DeleteConversation(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "deleting conversation: %v", err)
			return
		}
		respondJSON(w, map[string]any{"deleted": id})
	}
}

func handleListMessages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 200, 1000)

		if _, err := deps.Store.GetConversation(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "conversation not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "loading conversation: %v", err)
			return
		}

		messages, err := deps.Store.ListMessages(id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "listing messages: %v", err)
			return
		}

		views := make([]messageJSON, len(messages))
		for i, m := range messages {
			views[i] = messageJSON{
				ID:             m.ID,
				ConversationID: m.ConversationID,
				Sender:         m.Sender,
				Content:        m.Content,
				NodeID:         m.NodeID,
				CreatedAt:      timeOrEmpty(m.CreatedAt),
			}
		}
		respondJSON(w, map[string]any{"messages": views})
	}
}
