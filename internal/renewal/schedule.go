package renewal

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// ParseLeadTimes normalizes lead times given as a JSON array of numbers or numeric
// strings, or as a comma-separated string. Missing or empty input yields defaults.
// Non-numeric, non-finite and non-positive entries are dropped, fractions are truncated
// to whole days, and the result is sorted descending.
func ParseLeadTimes(value any, defaults []int) []int {
	var raw []float64
	switch v := value.(type) {
	case nil:
		return cloneDefaults(defaults)
	case string:
		if strings.TrimSpace(v) == "" {
			return cloneDefaults(defaults)
		}
		for _, part := range strings.Split(v, ",") {
			raw = append(raw, toNumber(strings.TrimSpace(part)))
		}
	case []any:
		if len(v) == 0 {
			return cloneDefaults(defaults)
		}
		for _, item := range v {
			raw = append(raw, toNumber(item))
		}
	case []int:
		if len(v) == 0 {
			return cloneDefaults(defaults)
		}
		for _, item := range v {
			raw = append(raw, float64(item))
		}
	case []float64:
		if len(v) == 0 {
			return cloneDefaults(defaults)
		}
		raw = v
	default:
		return cloneDefaults(defaults)
	}

	leads := []int{}
	for _, f := range raw {
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			continue
		}
		if days := int(math.Trunc(f)); days > 0 {
			leads = append(leads, days)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(leads)))
	return leads
}

func toNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		if n == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func cloneDefaults(defaults []int) []int {
	if len(defaults) == 0 {
		defaults = domain.DefaultLeadTimes
	}
	return append([]int(nil), defaults...)
}

// BuildSchedule returns one reminder per lead time, dated lead days before expiry and
// sorted by date. Reminders dated before now are skipped.
func BuildSchedule(expiry time.Time, leadTimes []int, now time.Time) []domain.RenewalReminder {
	reminders := make([]domain.RenewalReminder, 0, len(leadTimes))
	for _, lead := range leadTimes {
		at := expiry.AddDate(0, 0, -lead)
		status := domain.ReminderScheduled
		if at.Before(now) {
			status = domain.ReminderSkipped
		}
		reminders = append(reminders, domain.RenewalReminder{
			LeadDays:     lead,
			ScheduledFor: at,
			Status:       status,
		})
	}
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].ScheduledFor.Before(reminders[j].ScheduledFor)
	})
	return reminders
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	domain.DateFormat,
}

// ParseExpiry parses an ISO 8601 date or timestamp. A bare date is midnight UTC.
func ParseExpiry(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
