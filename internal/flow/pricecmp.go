package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lacomiqueria/chatbot/internal/enrich"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// priceComparison is the second fallback stage: "cheapest"/"most expensive"
// questions are answered deterministically from the last rendered catalog
// snapshot, never guessed by the language model.
type priceComparison struct {
	catalog enrich.CatalogAPI
}

// priceComparisonQuery classifies the price phrasing of a message.
type priceDirection int

const (
	priceNone priceDirection = iota
	priceCheapest
	priceMostExpensive
)

func detectPriceDirection(text string) priceDirection {
	// "most expensive" wins when both phrasings appear; cheapest matching is
	// the wider net ("más barato", "más económico").
	if mostExpensivePattern.MatchString(text) {
		return priceMostExpensive
	}
	if cheapestPattern.MatchString(text) {
		return priceCheapest
	}
	return priceNone
}

// apply resolves the turn when price phrasing is present. A fresh snapshot
// answers directly; a remembered franchise without a usable snapshot
// re-queries the catalog sorted by price; with neither, the customer is asked
// what to compare.
func (p *priceComparison) apply(ctx context.Context, s *ResolutionState) {
	direction := detectPriceDirection(s.EffectiveText)
	if direction == priceNone {
		return
	}
	slog.Debug("price comparison", "direction", direction, "snapshot_items", len(s.Flows.Memory.Snapshot))

	if len(s.Flows.Memory.Snapshot) > 0 && s.Flows.Memory.FreshAt(s.Now, models.PriceChallengeFreshness) {
		item := selectByPrice(s.Flows.Memory.Snapshot, direction)
		s.Resolve("price_comparison", models.OkResponse(renderPriceAnswer(item, direction), s.ConversationID, models.IntentRecommendations))
		return
	}

	franchise := firstNonEmpty(s.Flows.Memory.PromptedFranchise, s.Flows.Memory.LastFranchise)
	if franchise == "" {
		s.Resolve("price_comparison", models.OkResponse(msgPriceCompareClarify, s.ConversationID, models.IntentRecommendations))
		return
	}

	items, err := p.catalog.QueryByPrice(ctx, franchise, direction == priceCheapest, 5)
	if err != nil {
		s.Resolve("price_comparison", mapExternalError(err, s.ConversationID))
		return
	}
	if len(items) == 0 {
		s.Resolve("price_comparison", models.OkResponse(msgPriceCompareClarify, s.ConversationID, models.IntentRecommendations))
		return
	}

	item := selectByPrice(items, direction)
	s.MemoryToPersist = &models.RecommendationsMemory{
		LastFranchise:     franchise,
		LastType:          s.Flows.Memory.LastType,
		PromptedFranchise: s.Flows.Memory.PromptedFranchise,
		SnapshotAt:        s.Now,
		SnapshotSource:    "price_requery",
		SnapshotItemCount: len(items),
		Snapshot:          items,
	}
	s.Resolve("price_comparison", models.OkResponse(renderPriceAnswer(item, direction), s.ConversationID, models.IntentRecommendations))
}

// selectByPrice picks by strict comparison over amount; ties keep the
// first-seen item.
func selectByPrice(items []models.CatalogItem, direction priceDirection) models.CatalogItem {
	best := items[0]
	for _, item := range items[1:] {
		if direction == priceCheapest && item.Amount < best.Amount {
			best = item
		}
		if direction == priceMostExpensive && item.Amount > best.Amount {
			best = item
		}
	}
	return best
}

func renderPriceAnswer(item models.CatalogItem, direction priceDirection) string {
	label := "barato"
	if direction == priceMostExpensive {
		label = "caro"
	}
	currency := item.Currency
	if currency == "" {
		currency = "$"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "El más %s es %s a %s%.0f.", label, item.Title, currency, item.Amount)
	return b.String()
}
