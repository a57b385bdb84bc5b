package flow

import (
	"context"
	"testing"
	"time"

	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

func newDisambigState(text string, d models.DisambiguationSnapshot, mem models.RecommendationsMemory) *ResolutionState {
	return &ResolutionState{
		ConversationID:  "wa:5491100000001",
		RequestID:       "req-1",
		Now:             time.Now(),
		EffectiveText:   text,
		EffectiveIntent: models.IntentResult{Intent: models.IntentGeneral},
		Flows:           models.FlowSnapshot{Disambiguation: d, Memory: mem},
	}
}

func TestRecommendCategoryAnswerRewritesQuery(t *testing.T) {
	f := NewRecommendFlow(metrics.NewMemoryEmitter())
	d := models.DisambiguationSnapshot{State: models.DisambiguationAwaitingCatVol, Franchise: "One Piece"}

	s := newDisambigState("mangas", d, models.RecommendationsMemory{})
	f.Handle(context.Background(), s)

	if s.Resolved() {
		t.Fatalf("rewrite must release the turn, got %+v", s.Response)
	}
	if s.EffectiveText != "quiero ver mangas de One Piece" {
		t.Errorf("EffectiveText = %q", s.EffectiveText)
	}
	if s.EffectiveIntent.Intent != models.IntentRecommendations {
		t.Errorf("EffectiveIntent = %q", s.EffectiveIntent.Intent)
	}
	if got := s.EffectiveIntent.Entities["franchise"]; got != "One Piece" {
		t.Errorf("franchise entity = %q", got)
	}
	if s.DisambiguationToPersist == nil || s.DisambiguationToPersist.State != models.DisambiguationNone {
		t.Errorf("DisambiguationToPersist = %v, want explicit clear", s.DisambiguationToPersist)
	}
}

func TestRecommendVolumeAnswers(t *testing.T) {
	f := NewRecommendFlow(metrics.NewMemoryEmitter())
	d := models.DisambiguationSnapshot{State: models.DisambiguationAwaitingVolume, Franchise: "Berserk", CategoryHint: "mangas"}

	cases := []struct {
		text string
		want string
	}{
		{"el tomo 12", "quiero el tomo 12 de mangas de Berserk"},
		{"12", "quiero el tomo 12 de mangas de Berserk"},
		{"el último", "quiero el último tomo de mangas de Berserk"},
		{"desde el principio", "quiero mangas de Berserk desde el primer tomo"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			s := newDisambigState(tc.text, d, models.RecommendationsMemory{})
			f.Handle(context.Background(), s)

			if s.Resolved() {
				t.Fatalf("rewrite must release the turn, got %+v", s.Response)
			}
			if s.EffectiveText != tc.want {
				t.Errorf("EffectiveText = %q, want %q", s.EffectiveText, tc.want)
			}
		})
	}
}

func TestRecommendAcknowledgementUsesPromptedFranchise(t *testing.T) {
	f := NewRecommendFlow(metrics.NewMemoryEmitter())
	d := models.DisambiguationSnapshot{State: models.DisambiguationAwaitingCatVol, Franchise: "Chainsaw Man"}
	// The bot last asked about Chainsaw Man, but the last successful render
	// was Naruto; "dale" must follow the question, not the stale snapshot.
	mem := models.RecommendationsMemory{PromptedFranchise: "Chainsaw Man", LastFranchise: "Naruto"}

	s := newDisambigState("dale", d, mem)
	f.Handle(context.Background(), s)

	if s.EffectiveText != "quiero ver productos de Chainsaw Man" {
		t.Errorf("EffectiveText = %q", s.EffectiveText)
	}
}

func TestRecommendVolumeReaskOnCategoryAnswer(t *testing.T) {
	f := NewRecommendFlow(metrics.NewMemoryEmitter())
	d := models.DisambiguationSnapshot{State: models.DisambiguationAwaitingVolume, Franchise: "Berserk"}

	s := newDisambigState("mangas", d, models.RecommendationsMemory{})
	f.Handle(context.Background(), s)

	if s.Response == nil || s.Response.Message != msgDisambigVolumeReask {
		t.Fatalf("Response = %+v, want the volume re-ask", s.Response)
	}
	if s.DisambiguationToPersist == nil || s.DisambiguationToPersist.State != models.DisambiguationAwaitingVolume {
		t.Errorf("DisambiguationToPersist = %v, want still awaiting volume", s.DisambiguationToPersist)
	}
}

func TestRecommendTopicChangeReleasesTurn(t *testing.T) {
	f := NewRecommendFlow(metrics.NewMemoryEmitter())
	d := models.DisambiguationSnapshot{State: models.DisambiguationAwaitingCatVol, Franchise: "One Piece"}

	s := newDisambigState("dónde está mi pedido 1042?", d, models.RecommendationsMemory{})
	f.Handle(context.Background(), s)

	if s.Resolved() {
		t.Fatalf("topic change must release the turn, got %+v", s.Response)
	}
	if s.EffectiveText != "dónde está mi pedido 1042?" {
		t.Errorf("EffectiveText = %q, must stay untouched", s.EffectiveText)
	}
	if s.DisambiguationToPersist == nil || s.DisambiguationToPersist.State != models.DisambiguationNone {
		t.Errorf("DisambiguationToPersist = %v, want explicit clear", s.DisambiguationToPersist)
	}
}
