package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/lacomiqueria/chatbot/internal/enrich"
	"github.com/lacomiqueria/chatbot/internal/genai"
	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// llmStage is the last resolver: context enrichment plus the guided
// language-model call. The retry policy is a single conditional re-invocation
// with one extra hint block, never a loop: at most 2 model calls per turn.
type llmStage struct {
	enricher      enrich.Enricher
	llm           genai.ClientInterface
	metrics       metrics.Emitter
	policyContext string
}

// ordersContextBudget is the shared character budget divided evenly across
// order-related blocks for authenticated order replies.
const ordersContextBudget = 2000

// guidanceHint is the extra block appended before the guided retry.
const guidanceHint = "La respuesta anterior fue demasiado genérica. Respondé la consulta puntual del " +
	"cliente usando los datos de contexto; no uses frases de relleno."

// disambiguationPrompt is the payload of a disambiguation block emitted by
// context enrichment when a query is too broad to answer.
type disambiguationPrompt struct {
	Mode         string `json:"mode"` // "franchise_scope" or "volume_scope"
	Franchise    string `json:"franchise"`
	CategoryHint string `json:"category_hint,omitempty"`
}

// apply enriches the turn and drives the model with the guided-retry policy.
func (l *llmStage) apply(ctx context.Context, s *ResolutionState) {
	blocks, err := l.enricher.BuildContext(ctx, enrich.Request{
		Text:   s.EffectiveText,
		Intent: s.EffectiveIntent,
		Auth:   s.Auth,
	})
	if err != nil {
		s.NoteFallback("enrichment_error")
		s.Resolve("llm_context", mapExternalError(err, s.ConversationID))
		return
	}

	// Enrichment may decide the query is too broad and needs disambiguation
	// before any answer is possible.
	if prompt, ok := findDisambiguationPrompt(blocks); ok {
		l.askDisambiguation(s, prompt)
		return
	}

	l.noteRecommendationsMemory(s, blocks)
	blocks = l.shapeContext(s, blocks)

	reply, err := l.generate(ctx, s, blocks)
	if err != nil {
		s.NoteFallback("llm_error")
		s.Resolve("llm", mapExternalError(err, s.ConversationID))
		return
	}

	if reply.Message == "" || reply.Meta.IsFallback() {
		l.metrics.Count(metrics.LLMGuidedRetries, nil)
		s.NoteFallback("guided_retry")
		retryBlocks := append(blocks, models.ContextBlock{ContextType: enrich.BlockGuidance, ContextPayload: guidanceHint})
		retry, retryErr := l.generate(ctx, s, retryBlocks)
		if retryErr == nil && retry.Message != "" {
			reply = retry
		} else if reply.Message == "" {
			s.Resolve("llm", models.FailureResponse(msgBackendError))
			return
		}
	}

	s.LLMPath = reply.Meta.LLMPath
	s.Resolve("llm", models.OkResponse(reply.Message, s.ConversationID, s.EffectiveIntent.Intent))
}

func (l *llmStage) generate(ctx context.Context, s *ResolutionState, blocks []models.ContextBlock) (genai.Reply, error) {
	s.LLMAttempts++
	return l.llm.Generate(ctx, genai.Request{
		Text:    s.EffectiveText,
		Intent:  s.EffectiveIntent.Intent,
		History: s.History,
		Blocks:  blocks,
	})
}

// shapeContext applies the minimal-context budget for authenticated order
// replies, and injects the store policy context otherwise.
func (l *llmStage) shapeContext(s *ResolutionState, blocks []models.ContextBlock) []models.ContextBlock {
	if s.Auth.Authenticated() && s.EffectiveIntent.Intent == models.IntentOrders {
		return truncateOrderBlocks(blocks)
	}
	if l.policyContext != "" {
		blocks = append(blocks, models.ContextBlock{ContextType: enrich.BlockPolicies, ContextPayload: l.policyContext})
	}
	return blocks
}

// truncateOrderBlocks divides the shared budget evenly across order-related
// blocks.
func truncateOrderBlocks(blocks []models.ContextBlock) []models.ContextBlock {
	orderBlocks := 0
	for _, b := range blocks {
		if isOrderBlock(b.ContextType) {
			orderBlocks++
		}
	}
	if orderBlocks == 0 {
		return blocks
	}
	perBlock := ordersContextBudget / orderBlocks

	out := make([]models.ContextBlock, 0, len(blocks))
	for _, b := range blocks {
		if isOrderBlock(b.ContextType) && len(b.ContextPayload) > perBlock {
			b.ContextPayload = truncateRuneSafe(b.ContextPayload, perBlock)
		}
		out = append(out, b)
	}
	return out
}

// truncateRuneSafe cuts s to at most max bytes without splitting a
// multi-byte rune.
func truncateRuneSafe(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isOrderBlock(contextType string) bool {
	return contextType == enrich.BlockOrders || contextType == enrich.BlockOrderDetail
}

// findDisambiguationPrompt scans the blocks for a disambiguation request.
func findDisambiguationPrompt(blocks []models.ContextBlock) (disambiguationPrompt, bool) {
	for _, b := range blocks {
		if b.ContextType != enrich.BlockDisambiguation {
			continue
		}
		var prompt disambiguationPrompt
		if err := json.Unmarshal([]byte(b.ContextPayload), &prompt); err != nil {
			slog.Warn("undecodable disambiguation block ignored", "error", err)
			return disambiguationPrompt{}, false
		}
		return prompt, prompt.Franchise != ""
	}
	return disambiguationPrompt{}, false
}

// askDisambiguation renders the disambiguation question, arms the flow, and
// remembers which franchise the bot just asked about.
func (l *llmStage) askDisambiguation(s *ResolutionState, prompt disambiguationPrompt) {
	l.metrics.Count(metrics.DisambiguationTriggered, map[string]string{"mode": prompt.Mode})

	var message string
	var state models.DisambiguationState
	if prompt.Mode == "volume_scope" {
		message = fmt.Sprintf(msgDisambigVolume, prompt.Franchise)
		state = models.DisambiguationAwaitingVolume
	} else {
		message = fmt.Sprintf(msgDisambigCategoryOrVolume, prompt.Franchise)
		state = models.DisambiguationAwaitingCatVol
	}

	s.SetDisambiguation(models.DisambiguationSnapshot{
		State:        state,
		Franchise:    prompt.Franchise,
		CategoryHint: prompt.CategoryHint,
	})

	mem := s.Flows.Memory
	mem.PromptedFranchise = prompt.Franchise
	s.MemoryToPersist = &mem

	s.Resolve("disambiguation_prompt", models.OkResponse(message, s.ConversationID, models.IntentRecommendations))
}

// noteRecommendationsMemory refreshes the memory snapshot when enrichment
// rendered catalog items this turn.
func (l *llmStage) noteRecommendationsMemory(s *ResolutionState, blocks []models.ContextBlock) {
	for _, b := range blocks {
		if b.ContextType != enrich.BlockRecommendations && b.ContextType != enrich.BlockProducts {
			continue
		}
		var items []models.CatalogItem
		if err := json.Unmarshal([]byte(b.ContextPayload), &items); err != nil || len(items) == 0 {
			continue
		}
		mem := s.Flows.Memory
		mem.LastFranchise = firstNonEmpty(s.EffectiveIntent.Entities["franchise"], items[0].Franchise, mem.LastFranchise)
		mem.LastType = firstNonEmpty(s.EffectiveIntent.Entities["type"], items[0].Type, mem.LastType)
		mem.SnapshotAt = s.Now
		mem.SnapshotSource = b.ContextType
		mem.SnapshotItemCount = len(items)
		mem.Snapshot = items
		s.MemoryToPersist = &mem
		return
	}
}
