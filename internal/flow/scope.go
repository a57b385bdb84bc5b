package flow

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/lacomiqueria/chatbot/internal/metrics"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// Domain-scope classification: term lists plus short-utterance heuristics
// routing a message to in_scope, out_of_scope, smalltalk, or hostile. Only
// in_scope falls through to context enrichment and the language model. This
// stage is scope-only and never consults the catalog.

// ScopeClass is the scope classification of a message.
type ScopeClass string

const (
	ScopeInScope    ScopeClass = "in_scope"
	ScopeOutOfScope ScopeClass = "out_of_scope"
	ScopeSmalltalk  ScopeClass = "smalltalk"
	ScopeHostile    ScopeClass = "hostile"
)

// SmalltalkKind selects one of the four canned smalltalk replies.
type SmalltalkKind string

const (
	SmalltalkGreeting     SmalltalkKind = "greeting"
	SmalltalkThanks       SmalltalkKind = "thanks"
	SmalltalkFarewell     SmalltalkKind = "farewell"
	SmalltalkConfirmation SmalltalkKind = "confirmation"
)

var hostileTerms = []string{
	"idiota", "inútil", "inutil", "basura", "estafa", "estafadores",
	"mierda", "pelotudo", "garcas", "chorros", "una verga", "as de mierda",
}

var outOfScopeTerms = []string{
	"clima", "pronóstico", "pronostico", "elecciones", "presidente",
	"partido de", "resultado del partido", "horóscopo", "horoscopo",
	"receta de", "dólar", "dolar blue", "bitcoin", "tarea de matemática",
	"me hacés un resumen de", "escribime un ensayo",
}

var (
	greetingTerms = []string{"hola", "buenas", "buen día", "buen dia", "buenas tardes", "buenas noches", "qué tal", "que tal", "hey"}
	thanksTerms   = []string{"gracias", "mil gracias", "muchas gracias", "te pasaste", "genial gracias"}
	farewellTerms = []string{"chau", "adiós", "adios", "hasta luego", "nos vemos", "me voy"}
)

var inScopeHintPattern = regexp.MustCompile(`(?i)\b(manga|c[oó]mic|comic|tomo|figura|pedido|orden|compra|env[ií]o|stock|precio|pago|regal|serie|editorial|recomend)\w*\b`)

// classifyScope resolves the scope class and, for smalltalk, which canned
// reply applies.
func classifyScope(text string) (ScopeClass, SmalltalkKind) {
	lower := strings.ToLower(text)
	short := normalizeShort(text)

	for _, term := range hostileTerms {
		if strings.Contains(lower, term) {
			return ScopeHostile, ""
		}
	}

	// Smalltalk only matches short utterances; "hola, quiero ver mangas"
	// carries real content.
	if len(strings.Fields(short)) <= 3 && !inScopeHintPattern.MatchString(lower) {
		for _, term := range greetingTerms {
			if short == term || strings.HasPrefix(short, term+" ") {
				return ScopeSmalltalk, SmalltalkGreeting
			}
		}
		for _, term := range thanksTerms {
			if short == term {
				return ScopeSmalltalk, SmalltalkThanks
			}
		}
		for _, term := range farewellTerms {
			if short == term || strings.HasPrefix(short, term+" ") {
				return ScopeSmalltalk, SmalltalkFarewell
			}
		}
		if isShortAcknowledgement(short) {
			return ScopeSmalltalk, SmalltalkConfirmation
		}
	}

	for _, term := range outOfScopeTerms {
		if strings.Contains(lower, term) && !inScopeHintPattern.MatchString(lower) {
			return ScopeOutOfScope, ""
		}
	}

	return ScopeInScope, ""
}

// applyScopeGate resolves the turn for everything except in-scope messages.
func applyScopeGate(s *ResolutionState, em metrics.Emitter) {
	class, kind := classifyScope(s.EffectiveText)
	if class == ScopeInScope {
		return
	}
	slog.Debug("scope gate", "class", class, "kind", kind, "conversation_id", s.ConversationID)

	var message string
	switch class {
	case ScopeHostile:
		message = msgScopeHostile
	case ScopeOutOfScope:
		message = msgScopeOutOfScope
	case ScopeSmalltalk:
		switch kind {
		case SmalltalkGreeting:
			message = msgSmalltalkGreeting
		case SmalltalkThanks:
			message = msgSmalltalkThanks
		case SmalltalkFarewell:
			message = msgSmalltalkFarewell
		default:
			message = msgSmalltalkConfirmation
		}
	}

	reason := string(class)
	if kind != "" {
		reason = string(class) + "_" + string(kind)
	}
	em.Count(metrics.ScopeRedirects, map[string]string{"reason": reason})
	s.Resolve("scope_"+string(class), models.OkResponse(message, s.ConversationID, s.EffectiveIntent.Intent))
}
