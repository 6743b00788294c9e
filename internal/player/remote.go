package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"golang.org/x/time/rate"
)

const maxReplyBytes = 1 << 20

// Remote asks an HTTP endpoint for moves. The endpoint receives a JSON
// moveRequest and answers {"text": "..."} with free-form model output.
type Remote struct {
	name    string
	modelID string
	url     string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

type moveRequest struct {
	Player string     `json:"player"`
	Model  string     `json:"model"`
	State  game.State `json:"state"`
}

type moveReply struct {
	Text string `json:"text"`
}

// NewRemote builds a remote player. limiter may be nil and may be shared by
// every player of the same provider.
func NewRemote(name, modelID, url, token string, client *http.Client, limiter *rate.Limiter) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{
		name:    name,
		modelID: modelID,
		url:     strings.TrimRight(url, "/") + "/move",
		token:   token,
		client:  client,
		limiter: limiter,
	}
}

func (p *Remote) Name() string { return p.name }

func (p *Remote) Move(ctx context.Context, state game.State) (game.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return game.Response{}, fmt.Errorf("%w: rate limit: %w", game.ErrProvider, err)
		}
	}

	body, err := json.Marshal(moveRequest{Player: p.name, Model: p.modelID, State: state})
	if err != nil {
		return game.Response{}, fmt.Errorf("encode move request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return game.Response{}, fmt.Errorf("build move request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return game.Response{}, fmt.Errorf("%w: %w", game.ErrProvider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return game.Response{}, fmt.Errorf("%w: read reply: %w", game.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return game.Response{}, fmt.Errorf("%w: %s returned %d: %s", game.ErrProvider, p.url, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var reply moveReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return game.Response{}, fmt.Errorf("%w: decode reply: %w", game.ErrProvider, err)
	}
	return ParseResponse(reply.Text), nil
}
