package flow

import (
	"regexp"
	"strings"
)

// Shared text heuristics over rioplatense Spanish user input. Everything here
// is deterministic keyword matching; NLU quality is out of scope.

var affirmativeTerms = []string{
	"si", "sí", "sip", "sii", "dale", "ok", "okey", "claro", "obvio",
	"de una", "por favor", "perfecto", "genial", "buenisimo", "buenísimo",
}

var negativeTerms = []string{
	"no", "nop", "nope", "negativo", "para nada", "mejor no", "no gracias",
}

// Answer is the result of interpreting a yes/no reply.
type Answer int

const (
	AnswerUnclear Answer = iota
	AnswerYes
	AnswerNo
)

// interpretYesNo reads a short reply as yes, no, or unclear. Longer free-form
// messages resolve to unclear so real questions are never swallowed.
func interpretYesNo(text string) Answer {
	t := normalizeShort(text)
	if t == "" || len(strings.Fields(t)) > 4 {
		return AnswerUnclear
	}
	for _, term := range negativeTerms {
		if t == term || strings.HasPrefix(t, term+" ") {
			return AnswerNo
		}
	}
	for _, term := range affirmativeTerms {
		if t == term || strings.HasPrefix(t, term+" ") {
			return AnswerYes
		}
	}
	return AnswerUnclear
}

// isShortAcknowledgement reports whether text is a terse go-ahead ("dale",
// "ok", "sí") rather than new content.
func isShortAcknowledgement(text string) bool {
	t := normalizeShort(text)
	if t == "" || len(strings.Fields(t)) > 3 {
		return false
	}
	for _, term := range affirmativeTerms {
		if t == term {
			return true
		}
	}
	return false
}

var politenessClosings = []string{
	"gracias", "ok gracias", "listo gracias", "muchas gracias", "mil gracias",
	"genial gracias", "perfecto gracias", "gracias.", "gracias!",
}

// isPolitenessClosing reports whether text closes the conversation politely.
// These suppress the continuation rewrite so a finished conversation is not
// reopened.
func isPolitenessClosing(text string) bool {
	t := normalizeShort(text)
	for _, term := range politenessClosings {
		if t == strings.TrimRight(term, ".!") || t == term {
			return true
		}
	}
	return false
}

var moreLikeThisPattern = regexp.MustCompile(`(?i)\b(hay|ten[eé]s|tienen|mostr[aá]me|ver)\s+(m[aá]s|otros?|otras?)\b|\bm[aá]s\s+(opciones|productos)\b`)

// isMoreSignal reports a generic "do you have more?" follow-up.
func isMoreSignal(text string) bool {
	return moreLikeThisPattern.MatchString(text)
}

var cheaperPattern = regexp.MustCompile(`(?i)\b(m[aá]s\s+barat|m[aá]s\s+econ[oó]mic|algo\s+m[aá]s\s+barato|muy\s+caro)`)

// isCheaperSignal reports a generic "cheaper?" follow-up.
func isCheaperSignal(text string) bool {
	return cheaperPattern.MatchString(text)
}

var (
	cheapestPattern      = regexp.MustCompile(`(?i)\b(m[aá]s\s+barat\w*|m[aá]s\s+econ[oó]mic\w*|menor\s+precio)\b`)
	mostExpensivePattern = regexp.MustCompile(`(?i)\b(m[aá]s\s+car\w*|mayor\s+precio|m[aá]s\s+costos\w*)\b`)
)

var (
	volumeNumberPattern = regexp.MustCompile(`(?i)\b(?:tomo|vol(?:umen)?\.?|n[uú]mero)\s*#?\s*(\d{1,3})\b`)
	bareNumberPattern   = regexp.MustCompile(`^\s*#?(\d{1,3})\s*$`)
	// \b is ASCII-only and never matches next to "ú", so the boundary is
	// an explicit non-letter class.
	latestPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}])([uú]ltimo|m[aá]s\s+nuevo|m[aá]s\s+reciente)(?:$|[^\p{L}])`)
	startPattern  = regexp.MustCompile(`(?i)\b(primer[oa]?|desde\s+el\s+principio|desde\s+cero|el\s+1)\b`)
)

// volumeSignal classifies a volume reply: a concrete tomo number, "latest",
// or "from the start".
type volumeSignal struct {
	Number string
	Latest bool
	Start  bool
}

func (v volumeSignal) matched() bool { return v.Number != "" || v.Latest || v.Start }

func detectVolumeSignal(text string) volumeSignal {
	if m := volumeNumberPattern.FindStringSubmatch(text); m != nil {
		return volumeSignal{Number: m[1]}
	}
	if m := bareNumberPattern.FindStringSubmatch(text); m != nil {
		return volumeSignal{Number: m[1]}
	}
	if latestPattern.MatchString(text) {
		return volumeSignal{Latest: true}
	}
	if startPattern.MatchString(text) {
		return volumeSignal{Start: true}
	}
	return volumeSignal{}
}

// categoryTerms maps category words to the canonical category name.
var categoryTerms = map[string]string{
	"manga":   "mangas",
	"mangas":  "mangas",
	"comic":   "cómics",
	"comics":  "cómics",
	"cómic":   "cómics",
	"cómics":  "cómics",
	"figura":  "figuras",
	"figuras": "figuras",
	"funko":   "figuras",
	"funkos":  "figuras",
	"novela":  "novelas",
	"novelas": "novelas",
}

// detectCategory returns the canonical category mentioned in text, or "".
func detectCategory(text string) string {
	for _, word := range strings.Fields(normalizeShort(text)) {
		if c, ok := categoryTerms[word]; ok {
			return c
		}
	}
	return ""
}

// normalizeShort lowercases and strips terminal punctuation for short-reply
// matching.
func normalizeShort(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(t, "!¡¿?.,;:")
}
