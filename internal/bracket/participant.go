package bracket

import (
	"encoding/json"
	"fmt"
)

// Participant is one entrant, a (provider, model, seed) tuple. Seeds are 1-based.
type Participant struct {
	ProviderID  string `json:"provider_id" db:"provider_id"`
	ModelID     string `json:"model_id" db:"model_id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Seed        int    `json:"seed" db:"seed"`
}

// ParticipantKey holds only the identity-bearing fields of a Participant.
type ParticipantKey struct {
	ProviderID string
	ModelID    string
	Seed       int
}

func (p Participant) Key() ParticipantKey {
	return ParticipantKey{ProviderID: p.ProviderID, ModelID: p.ModelID, Seed: p.Seed}
}

// Same reports whether p and o are the same entrant, ignoring the display name.
func (p Participant) Same(o Participant) bool {
	return p.Key() == o.Key()
}

func (p Participant) String() string {
	return fmt.Sprintf("%s (seed %d)", p.DisplayName, p.Seed)
}

func (p Participant) MarshalJSON() ([]byte, error) {
	type alias Participant
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "TournamentParticipant", alias: alias(p)})
}
