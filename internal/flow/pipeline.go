package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lacomiqueria/chatbot/internal/classify"
	"github.com/lacomiqueria/chatbot/internal/enrich"
	"github.com/lacomiqueria/chatbot/internal/flowstate"
	"github.com/lacomiqueria/chatbot/internal/genai"
	"github.com/lacomiqueria/chatbot/internal/lookup"
	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
	"github.com/lacomiqueria/chatbot/internal/store"
)

// Deps are the collaborators an Orchestrator needs. All are required except
// Metrics, which defaults to the slog emitter.
type Deps struct {
	Store      store.Store
	Classifier classify.Classifier
	Enricher   enrich.Enricher
	Orders     enrich.OrdersAPI
	Catalog    enrich.CatalogAPI
	Lookup     lookup.OrderLookup
	Limiter    *lookup.Limiter
	LLM        genai.ClientInterface
	Metrics    metrics.Emitter
}

// Opts holds orchestrator tunables.
type Opts struct {
	// Source tags inbound events for idempotency keying.
	Source string
	// HistoryWindow bounds how many turns are loaded per resolution.
	HistoryWindow int
	// PolicyContext is the store policy text injected for non-order replies.
	PolicyContext string
}

// Option configures the orchestrator.
type Option func(*Opts)

// WithSource sets the inbound event source tag.
func WithSource(source string) Option {
	return func(o *Opts) { o.Source = source }
}

// WithHistoryWindow sets the history window size.
func WithHistoryWindow(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.HistoryWindow = n
		}
	}
}

// WithPolicyContext sets the store policy text.
func WithPolicyContext(text string) Option {
	return func(o *Opts) { o.PolicyContext = text }
}

// InboundTurn is one customer message to resolve.
type InboundTurn struct {
	ConversationID string
	EventID        string
	Text           string
	RemoteIP       string
	Auth           enrich.AuthContext
}

// Orchestrator resolves inbound turns: it reconstructs flow state from
// history, runs the flow handlers in precedence order, falls back through the
// resolver cascade, and finalizes the turn. A turn always produces exactly one
// response.
type Orchestrator struct {
	store      store.Store
	classifier classify.Classifier
	metrics    metrics.Emitter

	guest      *GuestOrderFlow
	orders     *OrdersFlow
	escalation *EscalationFlow
	recommend  *RecommendFlow
	price      *priceComparison
	llm        *llmStage

	source        string
	historyWindow int
}

// NewOrchestrator wires the resolution pipeline from its collaborators.
func NewOrchestrator(deps Deps, options ...Option) *Orchestrator {
	opts := Opts{
		Source:        "whatsapp",
		HistoryWindow: flowstate.DefaultHistoryWindow,
	}
	for _, opt := range options {
		opt(&opts)
	}

	em := deps.Metrics
	if em == nil {
		em = metrics.NewSlogEmitter()
	}

	return &Orchestrator{
		store:      deps.Store,
		classifier: deps.Classifier,
		metrics:    em,
		guest:      NewGuestOrderFlow(deps.Lookup, deps.Limiter, em),
		orders:     NewOrdersFlow(deps.Orders, em),
		escalation: NewEscalationFlow(em),
		recommend:  NewRecommendFlow(em),
		price:      &priceComparison{catalog: deps.Catalog},
		llm: &llmStage{
			enricher:      deps.Enricher,
			llm:           deps.LLM,
			metrics:       em,
			policyContext: opts.PolicyContext,
		},
		source:        opts.Source,
		historyWindow: opts.HistoryWindow,
	}
}

// HandleTurn resolves one inbound customer message end to end. Redelivered
// events return the stored response verbatim without re-running resolution.
func (o *Orchestrator) HandleTurn(ctx context.Context, in InboundTurn) (*models.Wf1Response, error) {
	if in.ConversationID == "" {
		return nil, models.ErrEmptyConversationID
	}
	if in.Text == "" {
		return nil, models.ErrEmptyMessage
	}
	if in.EventID == "" {
		return nil, models.ErrEmptyEventID
	}

	start := time.Now()
	slog.Debug("resolving inbound turn", "conversationID", in.ConversationID, "eventID", in.EventID)

	fresh, err := o.store.RecordInbound(o.source, in.EventID, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to record inbound event: %w", err)
	}
	if !fresh {
		return o.replayDelivery(in)
	}

	s, err := o.newState(ctx, in, start)
	if err != nil {
		return o.failTurn(in, start, err)
	}

	o.resolve(ctx, s)

	resp, err := o.finalize(s, start)
	if err != nil {
		return o.failTurn(in, start, err)
	}
	return resp, nil
}

// replayDelivery answers a duplicate delivery. A processed event returns the
// stored response verbatim; an event still in flight gets a holding message
// that is never persisted.
func (o *Orchestrator) replayDelivery(in InboundTurn) (*models.Wf1Response, error) {
	prior, err := o.store.GetProcessedResult(o.source, in.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed result: %w", err)
	}
	if prior != nil && prior.Response != nil {
		o.metrics.Count(metrics.DuplicateDeliveries, map[string]string{"state": "processed"})
		slog.Debug("duplicate delivery replayed", "conversationID", in.ConversationID, "eventID", in.EventID)
		return prior.Response, nil
	}
	o.metrics.Count(metrics.DuplicateDeliveries, map[string]string{"state": "in_flight"})
	return models.FailureResponse(msgStillProcessing), nil
}

// newState loads history, reconstructs the flow snapshot, classifies the text
// and builds the turn-local resolution state.
func (o *Orchestrator) newState(ctx context.Context, in InboundTurn, start time.Time) (*ResolutionState, error) {
	history, err := o.store.RecentTurns(in.ConversationID, o.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	intent, err := o.classifier.Classify(ctx, in.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to classify message: %w", err)
	}

	return &ResolutionState{
		ConversationID:  in.ConversationID,
		RequestID:       uuid.NewString(),
		Source:          o.source,
		EventID:         in.EventID,
		RemoteIP:        in.RemoteIP,
		Auth:            in.Auth,
		Now:             start,
		History:         history,
		Flows:           flowstate.Reconstruct(history),
		InboundText:     in.Text,
		EffectiveText:   in.Text,
		EffectiveIntent: intent,
	}, nil
}

// resolve runs the flow handlers in precedence order and then the fallback
// resolver cascade. Active multi-turn flows always win over intent routing.
func (o *Orchestrator) resolve(ctx context.Context, s *ResolutionState) {
	switch {
	case s.Flows.GuestOrder != models.GuestOrderNone:
		o.guest.Handle(ctx, s)
	case s.Flows.Escalation != models.EscalationNone:
		o.escalation.Handle(ctx, s)
	case s.Flows.Disambiguation.State != models.DisambiguationNone:
		o.recommend.Handle(ctx, s)
	case o.orders.Handles(s):
		o.orders.Handle(ctx, s)
	case o.guest.Handles(s):
		o.guest.Handle(ctx, s)
	}
	if !s.Resolved() {
		// An active flow that declined the turn (topic change, second
		// unclear answer) releases it back to intent routing: order
		// questions stay deterministic instead of reaching the model.
		switch {
		case o.orders.Handles(s):
			o.orders.Handle(ctx, s)
		case o.guest.Handles(s):
			o.guest.Handle(ctx, s)
		}
	}
	if s.Resolved() {
		return
	}

	applyContinuationRewrite(s)
	o.price.apply(ctx, s)
	if s.Resolved() {
		return
	}
	notePolicyQuestion(s, o.metrics)
	applyScopeGate(s, o.metrics)
	if s.Resolved() {
		return
	}
	o.llm.apply(ctx, s)
	if !s.Resolved() {
		// Every stage declined; this indicates a pipeline bug, not user input.
		s.NoteFallback("unresolved")
		s.Resolve("pipeline", models.FailureResponse(msgBackendError))
	}
}

// failTurn is the terminal error path: the failure is logged and audited, the
// in-flight dedup record is released so a redelivery can retry, and the
// customer gets the generic backend message.
func (o *Orchestrator) failTurn(in InboundTurn, start time.Time, cause error) (*models.Wf1Response, error) {
	slog.Error("turn resolution failed", "error", cause,
		"conversationID", in.ConversationID, "eventID", in.EventID, "errorType", fmt.Sprintf("%T", cause))
	o.metrics.Count(metrics.PipelineFallbacks, map[string]string{"reason": "pipeline_error"})

	if err := o.store.ClearInbound(o.source, in.EventID); err != nil {
		slog.Error("failed to release in-flight dedup record", "error", err, "eventID", in.EventID)
	}

	rec := models.AuditRecord{
		RequestID:      uuid.NewString(),
		ConversationID: in.ConversationID,
		Status:         models.AuditStatusFailure,
		ErrorName:      fmt.Sprintf("%T", cause),
		LatencyMS:      time.Since(start).Milliseconds(),
		CreatedAt:      time.Now(),
	}
	if err := o.store.AddAuditRecord(rec); err != nil {
		slog.Error("failed to write audit record", "error", err, "requestID", rec.RequestID)
	}

	return models.FailureResponse(msgBackendError), nil
}
