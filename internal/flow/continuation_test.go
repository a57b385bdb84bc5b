package flow

import (
	"testing"
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
)

func newContinuationState(text string, mem models.RecommendationsMemory) *ResolutionState {
	return &ResolutionState{
		ConversationID:  "wa:5491100000001",
		Now:             time.Now(),
		EffectiveText:   text,
		EffectiveIntent: models.IntentResult{Intent: models.IntentGeneral},
		Flows:           models.FlowSnapshot{Memory: mem},
	}
}

func freshMemory() models.RecommendationsMemory {
	return models.RecommendationsMemory{
		LastFranchise: "One Piece",
		SnapshotAt:    time.Now().Add(-time.Minute),
		Snapshot:      []models.CatalogItem{{Title: "One Piece Vol. 1", Amount: 5000}},
	}
}

func TestContinuationRewrite(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"acknowledgement", "dale", "quiero ver más productos de One Piece"},
		{"more signal", "tenés más opciones?", "quiero ver más productos de One Piece"},
		{"cheaper signal", "hay algo más barato?", "quiero opciones más baratas de One Piece"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newContinuationState(tc.text, freshMemory())
			applyContinuationRewrite(s)

			if s.EffectiveText != tc.want {
				t.Errorf("EffectiveText = %q, want %q", s.EffectiveText, tc.want)
			}
			if s.EffectiveIntent.Intent != models.IntentRecommendations {
				t.Errorf("EffectiveIntent = %q", s.EffectiveIntent.Intent)
			}
			if s.FallbackCount != 1 {
				t.Errorf("FallbackCount = %d", s.FallbackCount)
			}
		})
	}
}

func TestContinuationRewriteSkipsPolitenessClosing(t *testing.T) {
	s := newContinuationState("listo gracias", freshMemory())
	applyContinuationRewrite(s)

	if s.EffectiveText != "listo gracias" {
		t.Errorf("EffectiveText = %q, closing must not reopen the conversation", s.EffectiveText)
	}
}

func TestContinuationRewriteRequiresFreshSnapshot(t *testing.T) {
	mem := freshMemory()
	mem.SnapshotAt = time.Now().Add(-time.Hour)

	s := newContinuationState("dale", mem)
	applyContinuationRewrite(s)

	if s.EffectiveText != "dale" {
		t.Errorf("EffectiveText = %q, stale memory must not rewrite", s.EffectiveText)
	}
}

func TestContinuationRewriteRequiresRememberedFranchise(t *testing.T) {
	s := newContinuationState("dale", models.RecommendationsMemory{SnapshotAt: time.Now()})
	applyContinuationRewrite(s)

	if s.EffectiveText != "dale" {
		t.Errorf("EffectiveText = %q", s.EffectiveText)
	}
}

func TestContinuationRewritePrefersPromptedFranchise(t *testing.T) {
	mem := freshMemory()
	mem.PromptedFranchise = "Chainsaw Man"

	s := newContinuationState("dale", mem)
	applyContinuationRewrite(s)

	if s.EffectiveText != "quiero ver más productos de Chainsaw Man" {
		t.Errorf("EffectiveText = %q", s.EffectiveText)
	}
}
