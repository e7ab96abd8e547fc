// Package frecency builds smart suggestions from the indexed-item store:
// contextual weighting by hour/weekday/workspace/monitor, a human-readable
// reason per suggestion, and staleness decay. Context carries a session
// phase, but it does not affect the weighting.
package frecency

import (
	"math"
	"sort"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
	"github.com/xeonx/timeago"

	"github.com/hamr/hamrd/internal/indexstore"
)

// MaxSuggestionsPerCategory caps the total number of suggestions
// BuildSuggestions returns; suggestions are not grouped by contextual
// dimension, so the cap applies to the whole ranked list.
const MaxSuggestionsPerCategory = 2

// SessionPhase classifies the kind of day the suggestion context falls on.
type SessionPhase string

const (
	PhaseWeekday SessionPhase = "weekday"
	PhaseWeekend SessionPhase = "weekend"
	PhaseHoliday SessionPhase = "holiday"
)

// Context captures the situational dimensions a suggestion is scored
// against.
type Context struct {
	Hour         int
	Weekday      time.Weekday
	Workspace    string
	Monitor      string
	SessionPhase SessionPhase
}

var holidayCalendar = func() *cal.Calendar {
	c := cal.NewCalendar()
	c.AddHoliday(us.Holidays...)
	return c
}()

// BuildContext derives a Context from the current instant, using
// rickar/cal/v2 to classify weekday/weekend/holiday for SessionPhase -- a
// dimension the original only partially specifies (hour/weekday), filled
// in here per SPEC_FULL.md §5.
func BuildContext(now time.Time, workspace, monitor string) Context {
	phase := PhaseWeekday
	if isHoliday, _, _ := holidayCalendar.IsHoliday(now); isHoliday {
		phase = PhaseHoliday
	} else if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		phase = PhaseWeekend
	}

	return Context{
		Hour:         now.Hour(),
		Weekday:      now.Weekday(),
		Workspace:    workspace,
		Monitor:      monitor,
		SessionPhase: phase,
	}
}

// Suggestion is one ranked recommendation with an optional human-readable
// reason.
type Suggestion struct {
	PluginID string
	Item     indexstore.Item
	Weight   float64
	Reason   string
}

// weightedCount returns a weighted sum of the item's uses in slots matching
// ctx (hour x1, weekday x0.5, workspace x0.75, monitor x0.25), plus a
// one-line reason: a workspace match wins over an hour match, which wins over
// a weekday match; a monitor match gives no reason.
func weightedCount(fr indexstore.Frecency, ctx Context) (float64, string) {
	var weight float64
	reason := ""

	if count := fr.HourSlotCounts[ctx.Hour]; count > 0 {
		weight += float64(count)
		reason = "often used around this time"
	}
	if count := fr.DayOfWeekCounts[int(ctx.Weekday)]; count > 0 {
		weight += float64(count) * 0.5
		if reason == "" {
			reason = "often used on this day"
		}
	}
	if ctx.Workspace != "" {
		if count := fr.WorkspaceCounts[ctx.Workspace]; count > 0 {
			weight += float64(count) * 0.75
			reason = "frequently used in this workspace"
		}
	}
	if ctx.Monitor != "" {
		if count := fr.MonitorCounts[ctx.Monitor]; count > 0 {
			weight += float64(count) * 0.25
		}
	}

	return weight, reason
}

// StalenessFactor computes 0.5^(age_days/half_life_days), the decay applied
// to a suggestion's weight as its last use recedes into the past.
// A zero half-life or zero age both yield a factor of 1.0 (no decay).
func StalenessFactor(lastUsed, now time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1.0
	}
	ageDays := now.Sub(lastUsed).Hours() / 24
	if ageDays <= 0 {
		return 1.0
	}
	exp := ageDays / halfLifeDays
	return math.Pow(0.5, exp)
}

// Reason renders a human-readable "used X ago" string via xeonx/timeago.
func Reason(lastUsed, now time.Time) string {
	cfg := timeago.English
	return cfg.FormatReference(lastUsed, now)
}

// MaxAge, when positive, hard-cuts off any item not used within that many
// days; zero disables the cutoff.
type MaxAge struct {
	Days float64
}

// BuildSuggestions ranks items by context-weighted, staleness-decayed
// score, keeping at most MaxSuggestionsPerCategory in total -- the assembly order
// (suggestions before recents) is handled by the caller (internal/core),
// per DESIGN.md's Open Question decision.
func BuildSuggestions(idx *indexstore.Store, ctx Context, now time.Time, halfLifeDays float64, maxAge MaxAge) []Suggestion {
	type scored struct {
		Suggestion
		score float64
	}

	var all []scored
	for pluginID, pidx := range idx.Indexes {
		for _, item := range pidx.Items {
			if item.Frecency.Count == 0 {
				continue
			}

			lastUsed := time.UnixMilli(item.Frecency.LastUsedMS)
			if maxAge.Days > 0 && now.Sub(lastUsed).Hours()/24 > maxAge.Days {
				continue
			}

			weight, reason := weightedCount(item.Frecency, ctx)
			if weight <= 0 {
				continue
			}

			weight *= StalenessFactor(lastUsed, now, halfLifeDays)
			if reason == "" {
				reason = Reason(lastUsed, now)
			}

			all = append(all, scored{
				Suggestion: Suggestion{PluginID: pluginID, Item: item.Item, Weight: weight, Reason: reason},
				score:      weight,
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	if len(all) > MaxSuggestionsPerCategory {
		all = all[:MaxSuggestionsPerCategory]
	}

	out := make([]Suggestion, 0, len(all))
	for _, s := range all {
		out = append(out, s.Suggestion)
	}
	return out
}
