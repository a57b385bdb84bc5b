// Package classify defines the intent-classifier collaborator contract and a
// keyword baseline used for development and tests. The production classifier
// runs as an external service behind the same interface.
package classify

import (
	"context"
	"strings"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// Classifier is the intent classification contract.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.IntentResult, error)
}

// KeywordClassifier is a deterministic keyword baseline. Confidence is fixed
// per match tier; entities carry at most a franchise guess.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

var intentKeywords = []struct {
	intent string
	terms  []string
}{
	{models.IntentOrders, []string{
		"pedido", "orden", "compra", "envío", "envio", "seguimiento",
		"tracking", "cancelar", "cancelado", "devolución", "devolucion",
	}},
	{models.IntentPayments, []string{
		"pago", "pagar", "cuotas", "tarjeta", "transferencia", "mercado pago",
		"efectivo", "factura",
	}},
	{models.IntentRecommendations, []string{
		"recomend", "recomiend", "sugerí", "sugeri", "qué me conviene",
		"que me conviene", "para regalar", "parecido a",
	}},
	{models.IntentProducts, []string{
		"manga", "tomo", "cómic", "comic", "figura", "stock", "precio",
		"tenés", "tenes", "tienen", "busco", "quiero ver",
	}},
}

// knownFranchises is the franchise vocabulary the baseline can tag.
var knownFranchises = []string{
	"naruto", "one piece", "dragon ball", "berserk", "chainsaw man",
	"jujutsu kaisen", "demon slayer", "kimetsu", "attack on titan",
	"shingeki", "spy x family", "death note", "evangelion", "batman",
	"spiderman", "spider-man",
}

// Classify routes text to an intent by first keyword hit, in priority order.
func (c *KeywordClassifier) Classify(ctx context.Context, text string) (models.IntentResult, error) {
	lower := strings.ToLower(text)

	entities := map[string]string{}
	if f := DetectFranchise(lower); f != "" {
		entities["franchise"] = f
	}

	for _, group := range intentKeywords {
		for _, term := range group.terms {
			if strings.Contains(lower, term) {
				return models.IntentResult{
					Intent:     group.intent,
					Entities:   entities,
					Confidence: 0.7,
				}, nil
			}
		}
	}

	return models.IntentResult{Intent: models.IntentGeneral, Entities: entities, Confidence: 0.3}, nil
}

// DetectFranchise returns the first known franchise mentioned in text, or "".
func DetectFranchise(text string) string {
	lower := strings.ToLower(text)
	for _, f := range knownFranchises {
		if strings.Contains(lower, f) {
			return f
		}
	}
	return ""
}
