package a2a

import (
	"context"
	"strings"
	"sync"
)

// CardResolver fetches agent cards through a Client and remembers them, so
// each stage's card is requested at most once per resolver. Create one per
// pipeline run.
type CardResolver struct {
	client Client

	mu    sync.Mutex
	cards map[string]*AgentCard
}

// NewCardResolver returns a resolver backed by client.
func NewCardResolver(client Client) *CardResolver {
	return &CardResolver{
		client: client,
		cards:  make(map[string]*AgentCard),
	}
}

// Resolve returns the card served at baseURL, fetching it on first use.
// Failed fetches are not cached.
func (r *CardResolver) Resolve(ctx context.Context, baseURL string) (*AgentCard, error) {
	key := strings.TrimRight(baseURL, "/")

	r.mu.Lock()
	if card, ok := r.cards[key]; ok {
		r.mu.Unlock()
		return card, nil
	}
	r.mu.Unlock()

	card, err := r.client.DiscoverAgent(ctx, key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cards[key]; ok {
		return cached, nil
	}
	r.cards[key] = card
	return card, nil
}
