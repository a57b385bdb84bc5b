package flow

import (
	"regexp"
	"strings"

	"github.com/lacomiqueria/chatbot/internal/lookup"
)

// Identity-factor extraction for the guest order lookup flow. Factors may be
// explicitly labeled ("dni: 12345678") or arrive as unlabeled comma/line
// separated segments. Each factor is format-validated, and factors that were
// provided but invalid are reported separately from missing ones so the
// clarification message can be specific.

// Factor names used in clarification messages.
const (
	factorDNI      = "dni"
	factorName     = "nombre"
	factorLastName = "apellido"
	factorPhone    = "teléfono"
)

var (
	dniFormat   = regexp.MustCompile(`^\d{7,8}$`)
	phoneFormat = regexp.MustCompile(`^\+?\d{8,20}$`)
	nameFormat  = regexp.MustCompile(`^[\p{L}][\p{L}\s-]{0,49}$`)

	orderIDLabeled = regexp.MustCompile(`(?i)(?:pedido|orden|compra|order)\s*(?:n[uú]mero|nro\.?|n[°º])?\s*[:#]?\s*(\d{1,10})`)
	orderIDHash    = regexp.MustCompile(`#\s*(\d{1,10})`)

	labeledFactor = regexp.MustCompile(`(?i)(dni|documento|nombre|apellido|tel[eé]fono|tel|celular|cel)\s*[:=]\s*([^,\n;]+)`)
)

// lookupSignals is everything extracted from one message for the guest order
// lookup flow.
type lookupSignals struct {
	OrderID  string
	Identity lookup.Identity
	// Invalid lists factor names that were provided but failed format
	// validation.
	Invalid []string
}

// ValidFactorCount returns how many valid identity factors were extracted.
func (s lookupSignals) ValidFactorCount() int { return s.Identity.FactorCount() }

// HasLookupIntent reports whether the message already carries usable lookup
// signals: an order id plus at least one identity factor, valid or invalid.
func (s lookupSignals) HasLookupIntent() bool {
	return s.OrderID != "" && (s.ValidFactorCount() > 0 || len(s.Invalid) > 0)
}

// Complete reports whether a lookup can execute: an order id and at least two
// valid factors.
func (s lookupSignals) Complete() bool {
	return s.OrderID != "" && s.ValidFactorCount() >= 2
}

// MissingFactors returns the factor names that were neither provided validly
// nor provided invalidly, in stable order.
func (s lookupSignals) MissingFactors() []string {
	var missing []string
	provided := map[string]bool{}
	for _, f := range s.Invalid {
		provided[f] = true
	}
	if s.Identity.DNI == "" && !provided[factorDNI] {
		missing = append(missing, factorDNI)
	}
	if s.Identity.Name == "" && !provided[factorName] {
		missing = append(missing, factorName)
	}
	if s.Identity.LastName == "" && !provided[factorLastName] {
		missing = append(missing, factorLastName)
	}
	if s.Identity.Phone == "" && !provided[factorPhone] {
		missing = append(missing, factorPhone)
	}
	return missing
}

// extractLookupSignals parses one message for an order id and identity
// factors.
func extractLookupSignals(text string) lookupSignals {
	var s lookupSignals

	if m := orderIDLabeled.FindStringSubmatch(text); m != nil {
		s.OrderID = m[1]
	} else if m := orderIDHash.FindStringSubmatch(text); m != nil {
		s.OrderID = m[1]
	}

	remainder := text
	for _, m := range labeledFactor.FindAllStringSubmatch(text, -1) {
		label := strings.ToLower(m[1])
		value := strings.TrimSpace(m[2])
		remainder = strings.Replace(remainder, m[0], "", 1)
		switch label {
		case "dni", "documento":
			s.setDNI(value)
		case "nombre":
			s.setName(value)
		case "apellido":
			s.setLastName(value)
		default: // teléfono, tel, celular, cel
			s.setPhone(value)
		}
	}

	// Unlabeled comma/line separated segments.
	if s.OrderID != "" {
		// Avoid re-reading the order id as a factor.
		remainder = strings.Replace(remainder, s.OrderID, "", 1)
	}
	for _, segment := range splitSegments(remainder) {
		classifySegment(&s, segment)
	}
	return s
}

func splitSegments(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// classifySegment assigns an unlabeled segment to the first plausible factor:
// 7-8 digits read as a DNI, longer digit runs as a phone, letter runs as
// names (first name, then last name).
func classifySegment(s *lookupSignals, segment string) {
	compact := strings.ReplaceAll(segment, " ", "")
	switch {
	case dniFormat.MatchString(compact):
		if s.Identity.DNI == "" {
			s.Identity.DNI = compact
		}
	case phoneFormat.MatchString(compact):
		if s.Identity.Phone == "" {
			s.Identity.Phone = compact
		}
	case nameFormat.MatchString(segment) && !containsLookupNoise(segment):
		if s.Identity.Name == "" {
			s.setName(segment)
		} else if s.Identity.LastName == "" {
			s.setLastName(segment)
		}
	}
}

// lookupNoiseTerms are words that show a segment is sentence filler, not a
// name.
var lookupNoiseTerms = []string{
	"pedido", "orden", "compra", "hola", "quiero", "saber", "estado",
	"numero", "número", "dni", "telefono", "teléfono", "dato", "datos",
	"tengo", "donde", "dónde", "consultar", "ver",
}

func containsLookupNoise(segment string) bool {
	lower := strings.ToLower(segment)
	for _, term := range lookupNoiseTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func (s *lookupSignals) setDNI(v string) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ".", "")
	v = strings.ReplaceAll(v, " ", "")
	if dniFormat.MatchString(v) {
		s.Identity.DNI = v
	} else {
		s.Invalid = append(s.Invalid, factorDNI)
	}
}

func (s *lookupSignals) setName(v string) {
	v = strings.TrimSpace(v)
	if nameFormat.MatchString(v) {
		s.Identity.Name = v
	} else {
		s.Invalid = append(s.Invalid, factorName)
	}
}

func (s *lookupSignals) setLastName(v string) {
	v = strings.TrimSpace(v)
	if nameFormat.MatchString(v) {
		s.Identity.LastName = v
	} else {
		s.Invalid = append(s.Invalid, factorLastName)
	}
}

func (s *lookupSignals) setPhone(v string) {
	v = strings.ReplaceAll(strings.TrimSpace(v), " ", "")
	v = strings.ReplaceAll(v, "-", "")
	if phoneFormat.MatchString(v) {
		s.Identity.Phone = v
	} else {
		s.Invalid = append(s.Invalid, factorPhone)
	}
}
