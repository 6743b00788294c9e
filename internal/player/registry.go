package player

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"golang.org/x/time/rate"
)

type Kind string

const (
	KindRandom Kind = "random"
	KindFirst  Kind = "first"
	KindRemote Kind = "remote"
)

// Provider describes how to build players for one provider id.
type Provider struct {
	Kind              Kind
	BaseURL           string
	Token             string
	RequestsPerMinute int
}

// Registry creates a fresh player for each game a participant plays.
type Registry struct {
	rng       random.Source
	client    *http.Client
	providers map[string]Provider
	limiters  map[string]*rate.Limiter
}

// NewRegistry returns a registry that already knows the built-in "random"
// and "first" providers.
func NewRegistry(rng random.Source, client *http.Client) *Registry {
	r := &Registry{
		rng:       rng,
		client:    client,
		providers: map[string]Provider{},
		limiters:  map[string]*rate.Limiter{},
	}
	r.Register(string(KindRandom), Provider{Kind: KindRandom})
	r.Register(string(KindFirst), Provider{Kind: KindFirst})
	return r
}

func (r *Registry) Register(id string, p Provider) {
	r.providers[id] = p
	if p.Kind == KindRemote && p.RequestsPerMinute > 0 {
		every := time.Minute / time.Duration(p.RequestsPerMinute)
		r.limiters[id] = rate.NewLimiter(rate.Every(every), 1)
	}
}

func (r *Registry) Has(id string) bool {
	_, ok := r.providers[id]
	return ok
}

// IDs lists the known provider ids in order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewPlayer builds a player named after the participant's display name.
func (r *Registry) NewPlayer(p bracket.Participant) (game.Player, error) {
	prov, ok := r.providers[p.ProviderID]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", p.ProviderID)
	}
	switch prov.Kind {
	case KindRandom:
		return NewRandom(p.DisplayName, r.rng), nil
	case KindFirst:
		return NewFirst(p.DisplayName), nil
	case KindRemote:
		return NewRemote(p.DisplayName, p.ModelID, prov.BaseURL, prov.Token, r.client, r.limiters[p.ProviderID]), nil
	default:
		return nil, fmt.Errorf("provider %q has unknown kind %q", p.ProviderID, prov.Kind)
	}
}
