package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fooodis/chatd/internal/storage"
)

type leadJSON struct {
	ID                 string          `json:"id"`
	VisitorID          string          `json:"visitorId,omitempty"`
	Email              string          `json:"email,omitempty"`
	Name               string          `json:"name,omitempty"`
	Phone              string          `json:"phone,omitempty"`
	RestaurantName     string          `json:"restaurantName,omitempty"`
	UserType           string          `json:"userType,omitempty"`
	Language           string          `json:"language"`
	Status             string          `json:"status"`
	TotalConversations int             `json:"totalConversations"`
	TotalMessages      int             `json:"totalMessages"`
	CustomFields       json.RawMessage `json:"customFields"`
	Tags               json.RawMessage `json:"tags"`
	CreatedAt          string          `json:"createdAt"`
	UpdatedAt          string          `json:"updatedAt"`
}

func leadView(l storage.Lead) leadJSON {
	return leadJSON{
		ID:                 l.ID,
		VisitorID:          l.VisitorID,
		Email:              l.Email,
		Name:               l.Name,
		Phone:              l.Phone,
		RestaurantName:     l.RestaurantName,
		UserType:           l.UserType,
		Language:           l.Language,
		Status:             l.Status,
		TotalConversations: l.TotalConversations,
		TotalMessages:      l.TotalMessages,
		CustomFields:       rawOrEmptyObject(l.CustomFields),
		Tags:               rawOrEmptyArray(l.Tags),
		CreatedAt:          timeOrEmpty(l.CreatedAt),
		UpdatedAt:          timeOrEmpty(l.UpdatedAt),
	}
}

// Custom fields and tags are stored as JSON text; pass them through raw so
// clients see objects, not double-encoded strings.
func rawOrEmptyObject(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}

func rawOrEmptyArray(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("[]")
	}
	return json.RawMessage(s)
}

func handleListUsers(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		search := r.URL.Query().Get("search")
		status := r.URL.Query().Get("status")
		limit := parseIntParam(r, "limit", 50, 200)
		offset := parseIntParam(r, "offset", 0, 0)

		leads, err := deps.Store.ListLeads(search, status, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "listing users: %v", err)
			return
		}
		stats, err := deps.Store.GetLeadStats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "loading user stats: %v", err)
			return
		}

		views := make([]leadJSON, len(leads))
		for i, l := range leads {
			views[i] = leadView(l)
		}
		respondJSON(w, map[string]any{
			"users": views,
			"stats": map[string]int{
				"total":     stats.Total,
				"leads":     stats.Leads,
				"qualified": stats.Qualified,
				"customers": stats.Customers,
			},
		})
	}
}

type registerUserRequest struct {
	VisitorID      string         `json:"visitorId"`
	Email          string         `json:"email"`
	Name           string         `json:"name"`
	Phone          string         `json:"phone"`
	RestaurantName string         `json:"restaurantName"`
	UserType       string         `json:"userType"`
	Language       string         `json:"language"`
	Status         string         `json:"status"`
	CustomFields   map[string]any `json:"customFields"`
	Tags           []string       `json:"tags"`
	ConversationID string         `json:"conversationId"`
}

func handleRegisterUser(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req registerUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		in := storage.LeadInput{
			VisitorID:      req.VisitorID,
			Email:          req.Email,
			Name:           req.Name,
			Phone:          req.Phone,
			RestaurantName: req.RestaurantName,
			UserType:       req.UserType,
			Language:       req.Language,
			Status:         req.Status,
			ConversationID: req.ConversationID,
		}
		if req.CustomFields != nil {
			b, err := json.Marshal(req.CustomFields)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid customFields: %v", err)
				return
			}
			in.CustomFields = string(b)
		}
		if req.Tags != nil {
			b, err := json.Marshal(req.Tags)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid tags: %v", err)
				return
			}
			in.Tags = string(b)
		}

		lead, created, err := deps.Store.UpsertLead(in)
		if errors.Is(err, storage.ErrNoLeadKey) {
			httpError(w, http.StatusBadRequest, "email or visitorId is required")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "saving user: %v", err)
			return
		}

		// Analytics counter is best-effort; a failure never fails the call.
		if created {
			if err := deps.Store.IncrementDailyMetric(storage.MetricLeadsCaptured, time.Now().UTC()); err != nil {
				slog.Warn("incrementing leads counter failed", "error", err)
			}
		}

		respondJSON(w, map[string]any{"user": leadView(lead), "created": created})
	}
}
