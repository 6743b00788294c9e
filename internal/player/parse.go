package player

import (
	"regexp"
	"strings"

	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/utils"
)

var (
	uciRe     = regexp.MustCompile(`(?i)\b([a-h][1-8][a-h][1-8][qrbn]?)\b`)
	sanRe     = regexp.MustCompile(`\b([KQRBN]?[a-h]?[1-8]?x?[a-h][1-8](?:=[QRBN])?[+#]?|O-O-O|O-O)\b`)
	headingRe = regexp.MustCompile(`(?m)^#{1,3}[ \t]*`)
)

var movePrefixes = []string{"my move:", "move:", "i play", "i choose", "best move:", "**", "*"}

// ParseResponse splits free-form model output into reasoning and a move token.
// Output organised under markdown headings ("## Reasoning", "## Move") is read
// section by section; anything else is scanned as a whole.
func ParseResponse(raw string) game.Response {
	var reasoning, moveText string
	for _, part := range headingRe.Split(raw, -1) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		header, content, _ := strings.Cut(part, "\n")
		header = strings.ToLower(strings.TrimSpace(header))
		content = strings.TrimSpace(content)

		switch {
		case containsAny(header, "reasoning", "thinking", "analysis", "thought"):
			reasoning = content
		case strings.Contains(header, "move") && !strings.Contains(header, "correction"):
			moveText = content
		}
	}

	source := raw
	if moveText != "" {
		source = moveText
	}
	return game.Response{
		Raw:       raw,
		Move:      ExtractMove(source),
		Reasoning: utils.StringOrNil(reasoning),
	}
}

// ExtractMove pulls a UCI or SAN token out of text, falling back to the first word.
func ExtractMove(text string) string {
	cleaned := strings.TrimSpace(text)
	for _, prefix := range movePrefixes {
		if strings.HasPrefix(strings.ToLower(cleaned), prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
		}
	}

	if m := uciRe.FindStringSubmatch(cleaned); m != nil {
		return strings.ToLower(m[1])
	}
	if m := sanRe.FindStringSubmatch(cleaned); m != nil {
		return m[1]
	}
	if fields := strings.Fields(cleaned); len(fields) > 0 {
		return fields[0]
	}
	return cleaned
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
