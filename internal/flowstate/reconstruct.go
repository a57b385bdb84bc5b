// Package flowstate reconstructs ephemeral flow state from conversation
// history.
//
// There is no session table. Every turn, the pipeline hands this package the
// most recent history rows (newest first) and gets back the flow snapshot the
// previous bot turn stamped into its metadata. Absence of a key, or a key
// written as an explicit null, both resolve to "no active flow" rather than
// "unknown", which makes reconstruction idempotent under replay and tolerant
// of metadata schema evolution.
package flowstate

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// DefaultHistoryWindow is the default number of history rows the caller
// fetches for reconstruction.
const DefaultHistoryWindow = 12

// Reconstruct scans rows (newest first) and recovers the full flow snapshot.
// For each flow family the most recent bot row that defines the family's key
// wins; rows that never wrote the key are skipped, not treated as clears.
// The caller decides how much history to hand in; every row it does is
// scanned.
func Reconstruct(rows []models.Turn) models.FlowSnapshot {
	var snap models.FlowSnapshot
	snap.GuestOrder = models.GuestOrderState(latestValue(rows, models.MetaGuestOrderState))
	snap.Escalation = models.EscalationState(latestValue(rows, models.MetaEscalationState))
	snap.Disambiguation = reconstructDisambiguation(rows)
	snap.Memory = reconstructMemory(rows)

	slog.Debug("flowstate reconstructed",
		"guest_order", snap.GuestOrder,
		"escalation", snap.Escalation,
		"disambiguation", snap.Disambiguation.State,
		"active_flows", snap.ActiveFlowCount())
	return snap
}

// latestValue returns the value under key from the most recent bot row that
// defines it. An explicit null resolves to "".
func latestValue(rows []models.Turn, key string) string {
	for _, row := range rows {
		if row.Sender != models.SenderBot {
			continue
		}
		if row.Metadata.Has(key) {
			return row.Metadata.GetString(key)
		}
	}
	return ""
}

func reconstructDisambiguation(rows []models.Turn) models.DisambiguationSnapshot {
	for _, row := range rows {
		if row.Sender != models.SenderBot {
			continue
		}
		if !row.Metadata.Has(models.MetaDisambiguationState) {
			continue
		}
		state := models.DisambiguationState(row.Metadata.GetString(models.MetaDisambiguationState))
		if state == models.DisambiguationNone {
			return models.DisambiguationSnapshot{}
		}
		return models.DisambiguationSnapshot{
			State:        state,
			Franchise:    row.Metadata.GetString(models.MetaDisambiguationFran),
			CategoryHint: row.Metadata.GetString(models.MetaDisambiguationHint),
		}
	}
	return models.DisambiguationSnapshot{}
}

// reconstructMemory recovers each memory key independently: the bot may
// refresh the prompted franchise without re-rendering a catalog snapshot.
func reconstructMemory(rows []models.Turn) models.RecommendationsMemory {
	mem := models.RecommendationsMemory{
		LastFranchise:     latestValue(rows, models.MetaRecoLastFranchise),
		LastType:          latestValue(rows, models.MetaRecoLastType),
		PromptedFranchise: latestValue(rows, models.MetaRecoPromptedFran),
		SnapshotSource:    latestValue(rows, models.MetaRecoSnapshotSource),
	}

	if ts := latestValue(rows, models.MetaRecoSnapshotAt); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			mem.SnapshotAt = t
		} else {
			slog.Warn("flowstate: unparseable snapshot timestamp ignored", "value", ts, "error", err)
		}
	}

	for _, row := range rows {
		if row.Sender != models.SenderBot {
			continue
		}
		if row.Metadata.Has(models.MetaRecoSnapshotCount) {
			mem.SnapshotItemCount = row.Metadata.GetInt(models.MetaRecoSnapshotCount)
			break
		}
	}

	if raw := latestValue(rows, models.MetaCatalogSnapshot); raw != "" {
		var items []models.CatalogItem
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			mem.Snapshot = items
		} else {
			slog.Warn("flowstate: undecodable catalog snapshot ignored", "error", err)
		}
	}
	return mem
}

// cancelledOrderPattern matches the bot's own cancellation wording, e.g.
// "Tu pedido #1042 figura como cancelado".
var cancelledOrderPattern = regexp.MustCompile(`(?i)pedido\s*#?(\d+)[^.]*cancelad`)

// LastCancelledOrderID recovers the most recently mentioned cancelled order
// id by scanning bot turns newest-first for the cancellation wording.
func LastCancelledOrderID(rows []models.Turn) string {
	for _, row := range rows {
		if row.Sender != models.SenderBot {
			continue
		}
		if m := cancelledOrderPattern.FindStringSubmatch(row.Content); m != nil {
			return m[1]
		}
	}
	return ""
}

var orderIDPattern = regexp.MustCompile(`(?i)pedido\s*#?(\d+)`)

// LastMentionedOrderID recovers the most recently discussed order id: the
// stamped metadata key wins over re-parsing message content.
func LastMentionedOrderID(rows []models.Turn) string {
	for _, row := range rows {
		if row.Sender != models.SenderBot {
			continue
		}
		if id := row.Metadata.GetString(models.MetaLastOrderID); id != "" {
			return id
		}
		if m := orderIDPattern.FindStringSubmatch(row.Content); m != nil {
			return m[1]
		}
	}
	return ""
}

// PriorBotGreeting returns the opening line of the most recent bot turn when
// it reads like a greeting, for greeting dedup during finalization.
func PriorBotGreeting(rows []models.Turn) string {
	for _, row := range rows {
		if row.Sender != models.SenderBot {
			continue
		}
		line := firstLine(row.Content)
		if greetingPattern.MatchString(line) {
			return line
		}
		return ""
	}
	return ""
}

var greetingPattern = regexp.MustCompile(`(?i)^\s*¡?(hola|buenas|buen\s+d[ií]a|buenas\s+tardes|buenas\s+noches)[!,.\s]`)

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
