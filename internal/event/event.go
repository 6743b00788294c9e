// Package event defines the immutable events produced by games and tournaments
// and their JSON wire format. Every encoded event, at every nesting level,
// carries a "type" field naming its concrete kind.
package event

import (
	"encoding/json"
	"fmt"
)

// Event is anything that can be put on the wire.
type Event interface {
	EventType() string
}

// GameEvent is produced by a single game.
type GameEvent interface {
	Event
	gameEvent()
}

// TournamentEvent is produced by a tournament run.
type TournamentEvent interface {
	Event
	tournamentEvent()
}

// withType encodes v and prepends a "type" member. v must encode to an object.
func withType(typ string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("event %s: expected a JSON object", typ)
	}
	tag, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+len(tag)+10)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	return append(out, body[1:]...), nil
}

func peekType(data []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}
	if head.Type == "" {
		return "", fmt.Errorf("event has no type")
	}
	return head.Type, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeGame decodes a game event from its tagged JSON form.
func DecodeGame(data []byte) (GameEvent, error) {
	typ, err := peekType(data)
	if err != nil {
		return nil, err
	}
	var ev Event
	switch typ {
	case TypeGameStart:
		ev, err = decodeAs[GameStart](data)
	case TypeTurnStart:
		ev, err = decodeAs[TurnStart](data)
	case TypeMoveRequested:
		ev, err = decodeAs[MoveRequested](data)
	case TypeInvalidMove:
		ev, err = decodeAs[InvalidMove](data)
	case TypeMoveApplied:
		ev, err = decodeAs[MoveApplied](data)
	case TypeCheck:
		ev, err = decodeAs[Check](data)
	case TypeGameOver:
		ev, err = decodeAs[GameOver](data)
	default:
		return nil, fmt.Errorf("unknown game event type %q", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return ev.(GameEvent), nil
}

// Decode decodes a tournament event from its tagged JSON form.
func Decode(data []byte) (TournamentEvent, error) {
	typ, err := peekType(data)
	if err != nil {
		return nil, err
	}
	var ev Event
	switch typ {
	case TypeTournamentStart:
		ev, err = decodeAs[TournamentStart](data)
	case TypeRoundStart:
		ev, err = decodeAs[RoundStart](data)
	case TypeMatchStart:
		ev, err = decodeAs[MatchStart](data)
	case TypeMatchGame:
		ev, err = decodeAs[MatchGame](data)
	case TypeMatchComplete:
		ev, err = decodeAs[MatchComplete](data)
	case TypeRoundComplete:
		ev, err = decodeAs[RoundComplete](data)
	case TypeTournamentComplete:
		ev, err = decodeAs[TournamentComplete](data)
	case TypeError:
		ev, err = decodeAs[Error](data)
	default:
		return nil, fmt.Errorf("unknown tournament event type %q", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return ev.(TournamentEvent), nil
}
