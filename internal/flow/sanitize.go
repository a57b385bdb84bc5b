package flow

import "strings"

// sanitizeOutbound cleans a model-produced message before it reaches the
// customer: internal context markers are stripped, empty list bullets are
// dropped, and a greeting is removed when the bot already greeted earlier in
// the conversation.
func sanitizeOutbound(message, priorGreeting string) string {
	lines := strings.Split(message, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[contexto:") {
			continue
		}
		if isEmptyBullet(trimmed) {
			continue
		}
		out = append(out, line)
	}

	if priorGreeting != "" && len(out) > 0 && greetingLine(out[0]) {
		out = out[1:]
		for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
			out = out[1:]
		}
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// isEmptyBullet reports whether the line is a list marker with no content.
func isEmptyBullet(trimmed string) bool {
	switch trimmed {
	case "-", "*", "•":
		return true
	}
	return false
}

func greetingLine(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	lower = strings.TrimLeft(lower, "¡!")
	for _, prefix := range []string{"hola", "buenas", "buen día", "buen dia"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
