package flow

import (
	"regexp"

	"github.com/lacomiqueria/chatbot/internal/metrics"
)

// Business-policy detection runs for observability only. It is explicitly
// disabled as a direct-answer bypass: policy questions always flow through
// the language model with enriched context, and this stage just counts them.

var (
	policyPattern   = regexp.MustCompile(`(?i)\b(pol[ií]tica|devoluci[oó]n|devoluciones|reembolso|garant[ií]a|cambios?\s+de\s+producto|cambio\s+y\s+devoluci[oó]n|t[eé]rminos\s+y\s+condiciones)\b`)
	returnsPattern  = regexp.MustCompile(`(?i)devoluci|reembolso`)
	warrantyPattern = regexp.MustCompile(`(?i)garant[ií]a`)
	exchangePattern = regexp.MustCompile(`(?i)cambio`)
)

// policyTopic classifies which policy area a message touches, for metric
// tags.
func policyTopic(text string) string {
	switch {
	case returnsPattern.MatchString(text):
		return "returns"
	case warrantyPattern.MatchString(text):
		return "warranty"
	case exchangePattern.MatchString(text):
		return "exchanges"
	default:
		return "general"
	}
}

// notePolicyQuestion emits the policy metric when the message asks about
// store policy. The turn continues down the cascade untouched.
func notePolicyQuestion(s *ResolutionState, em metrics.Emitter) {
	if !policyPattern.MatchString(s.EffectiveText) {
		return
	}
	em.Count(metrics.PolicyQuestions, map[string]string{"topic": policyTopic(s.EffectiveText)})
}
