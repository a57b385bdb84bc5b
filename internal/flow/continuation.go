package flow

import (
	"fmt"
	"log/slog"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// applyContinuationRewrite is the first fallback stage: a terse go-ahead or a
// generic "cheaper?"/"more?" follow-up re-enters the recommendations context
// of the remembered franchise instead of being answered cold. Politeness
// closings are explicitly excluded so a finished conversation is never
// reopened.
func applyContinuationRewrite(s *ResolutionState) {
	if isPolitenessClosing(s.EffectiveText) {
		return
	}

	franchise := firstNonEmpty(s.Flows.Memory.PromptedFranchise, s.Flows.Memory.LastFranchise)
	if franchise == "" || !s.Flows.Memory.FreshAt(s.Now, models.SnapshotFreshness) {
		return
	}

	var query string
	switch {
	case isCheaperSignal(s.EffectiveText):
		query = fmt.Sprintf("quiero opciones más baratas de %s", franchise)
	case isShortAcknowledgement(s.EffectiveText), isMoreSignal(s.EffectiveText):
		query = fmt.Sprintf("quiero ver más productos de %s", franchise)
	default:
		return
	}

	s.NoteFallback("continuation_rewrite")
	s.EffectiveText = query
	s.EffectiveIntent = models.IntentResult{
		Intent:     models.IntentRecommendations,
		Entities:   map[string]string{"franchise": franchise},
		Confidence: 1,
	}
	slog.Debug("continuation rewrite applied", "query", query, "franchise", franchise)
}
