package chatbot

import (
	"context"

	"github.com/fooodis/chatd/internal/flow"
	"github.com/fooodis/chatd/internal/storage"
)

// StoreAgents adapts the storage layer to the executor's agent directory.
type StoreAgents struct {
	Store *storage.Store
}

func (a StoreAgents) Agent(ctx context.Context, id string) (flow.Agent, error) {
	rec, err := a.Store.GetAgent(id)
	if err != nil {
		return flow.Agent{}, err
	}
	return flow.Agent{
		ID:          rec.ID,
		Name:        rec.Name,
		Avatar:      rec.Avatar,
		AssistantID: rec.AssistantID,
	}, nil
}
