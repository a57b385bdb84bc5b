package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// RecommendFlow resolves a pending recommendations disambiguation. It never
// answers from the disambiguation state alone: it rewrites the customer's
// terse follow-up ("mangas", "tomo 3", "dale") into a fully-specified
// synthetic query plus an entity override, clears the state, and releases the
// turn back to context enrichment.
type RecommendFlow struct {
	metrics metrics.Emitter
}

// NewRecommendFlow creates the disambiguation flow handler.
func NewRecommendFlow(em metrics.Emitter) *RecommendFlow {
	return &RecommendFlow{metrics: em}
}

// Handles claims turns with a disambiguation pending.
func (f *RecommendFlow) Handles(s *ResolutionState) bool {
	return s.Flows.Disambiguation.State != models.DisambiguationNone
}

// Handle advances the disambiguation by one turn.
func (f *RecommendFlow) Handle(ctx context.Context, s *ResolutionState) {
	d := s.Flows.Disambiguation
	slog.Debug("recommend flow", "state", d.State, "franchise", d.Franchise, "conversation_id", s.ConversationID)

	switch d.State {
	case models.DisambiguationAwaitingCatVol:
		f.handleCategoryOrVolume(s, d)
	case models.DisambiguationAwaitingVolume:
		f.handleVolumeDetail(s, d)
	}
}

func (f *RecommendFlow) handleCategoryOrVolume(s *ResolutionState, d models.DisambiguationSnapshot) {
	if vol := detectVolumeSignal(s.EffectiveText); vol.matched() {
		f.resolveWith(s, volumeQuery(vol, d.Franchise, d.CategoryHint), d.Franchise)
		return
	}
	if category := detectCategory(s.EffectiveText); category != "" {
		f.resolveWith(s, fmt.Sprintf("quiero ver %s de %s", category, d.Franchise), d.Franchise)
		return
	}
	if isShortAcknowledgement(s.EffectiveText) {
		// "dale" resolves against what the bot just asked about, not what
		// was last successfully shown; the two diverge whenever the asked
		// franchise yielded no results.
		franchise := firstNonEmpty(s.Flows.Memory.PromptedFranchise, d.Franchise, s.Flows.Memory.LastFranchise)
		f.resolveWith(s, fmt.Sprintf("quiero ver productos de %s", franchise), franchise)
		return
	}

	// Topic change: clear the flow explicitly and let the pipeline treat the
	// message on its own terms.
	s.ClearDisambiguation()
}

func (f *RecommendFlow) handleVolumeDetail(s *ResolutionState, d models.DisambiguationSnapshot) {
	if vol := detectVolumeSignal(s.EffectiveText); vol.matched() {
		f.resolveWith(s, volumeQuery(vol, d.Franchise, d.CategoryHint), d.Franchise)
		return
	}

	// Bare category words do not resolve a volume question.
	if detectCategory(s.EffectiveText) != "" || isShortAcknowledgement(s.EffectiveText) {
		s.SetDisambiguation(d)
		s.Resolve("recommend_disambiguation", models.OkResponse(msgDisambigVolumeReask, s.ConversationID, models.IntentRecommendations))
		return
	}

	s.ClearDisambiguation()
}

// resolveWith rewrites the turn into a synthetic recommendations query and
// releases it back to the cascade.
func (f *RecommendFlow) resolveWith(s *ResolutionState, query, franchise string) {
	f.metrics.Count(metrics.DisambiguationResolved, nil)
	s.ClearDisambiguation()
	s.EffectiveText = query
	s.EffectiveIntent = models.IntentResult{
		Intent:     models.IntentRecommendations,
		Entities:   map[string]string{"franchise": franchise},
		Confidence: 1,
	}
	slog.Debug("recommend flow rewrote turn", "query", query, "franchise", franchise)
}

func volumeQuery(vol volumeSignal, franchise, categoryHint string) string {
	subject := franchise
	if categoryHint != "" {
		subject = categoryHint + " de " + franchise
	}
	switch {
	case vol.Number != "":
		return fmt.Sprintf("quiero el tomo %s de %s", vol.Number, subject)
	case vol.Latest:
		return fmt.Sprintf("quiero el último tomo de %s", subject)
	default:
		return fmt.Sprintf("quiero %s desde el primer tomo", subject)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
