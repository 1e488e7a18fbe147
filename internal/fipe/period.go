package fipe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// portugueseMonths maps the month names used by the upstream reference table
// listing to their MM form.
var portugueseMonths = map[string]string{
	"janeiro":   "01",
	"fevereiro": "02",
	"março":     "03",
	"marco":     "03",
	"abril":     "04",
	"maio":      "05",
	"junho":     "06",
	"julho":     "07",
	"agosto":    "08",
	"setembro":  "09",
	"outubro":   "10",
	"novembro":  "11",
	"dezembro":  "12",
}

// NormalizePeriod converts an upstream month label such as "janeiro/2024"
// into the canonical MM/YYYY form. Inputs already in MM/YYYY pass through.
func NormalizePeriod(label string) string {
	parts := strings.SplitN(strings.TrimSpace(label), "/", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(label)
	}
	month := strings.ToLower(strings.TrimSpace(parts[0]))
	year := strings.TrimSpace(parts[1])
	if mm, ok := portugueseMonths[month]; ok {
		return mm + "/" + year
	}
	return month + "/" + year
}

// ParsePeriod parses an MM/YYYY string into a comparable (year, month) pair.
func ParsePeriod(period string) (year, month int, err error) {
	parts := strings.SplitN(strings.TrimSpace(period), "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid period %q (want MM/YYYY)", period)
	}
	month, err = strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month in period %q", period)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil || year <= 0 {
		return 0, 0, fmt.Errorf("invalid year in period %q", period)
	}
	return year, month, nil
}

// ComparePeriods orders two MM/YYYY strings chronologically, returning -1, 0
// or 1. Unparseable periods sort first.
func ComparePeriods(a, b string) int {
	ay, am, aerr := ParsePeriod(a)
	by, bm, berr := ParsePeriod(b)
	if aerr != nil || berr != nil {
		return strings.Compare(a, b)
	}
	switch {
	case ay != by:
		if ay < by {
			return -1
		}
		return 1
	case am != bm:
		if am < bm {
			return -1
		}
		return 1
	}
	return 0
}

// FilterPeriods returns the periods p with start <= p <= end under
// chronological ordering, sorted oldest first. An empty bound leaves that
// side unconstrained. Bounds must be valid MM/YYYY strings when present.
func FilterPeriods(periods []ReferencePeriod, start, end string) ([]ReferencePeriod, error) {
	if start != "" {
		if _, _, err := ParsePeriod(start); err != nil {
			return nil, fmt.Errorf("start period: %w", err)
		}
	}
	if end != "" {
		if _, _, err := ParsePeriod(end); err != nil {
			return nil, fmt.Errorf("end period: %w", err)
		}
	}

	filtered := make([]ReferencePeriod, 0, len(periods))
	for _, p := range periods {
		if _, _, err := ParsePeriod(p.Period); err != nil {
			continue
		}
		if start != "" && ComparePeriods(p.Period, start) < 0 {
			continue
		}
		if end != "" && ComparePeriods(p.Period, end) > 0 {
			continue
		}
		filtered = append(filtered, p)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return ComparePeriods(filtered[i].Period, filtered[j].Period) < 0
	})
	return filtered, nil
}

// LatestPeriod returns the chronologically newest period of the slice.
func LatestPeriod(periods []ReferencePeriod) (ReferencePeriod, bool) {
	if len(periods) == 0 {
		return ReferencePeriod{}, false
	}
	latest := periods[0]
	for _, p := range periods[1:] {
		if ComparePeriods(p.Period, latest.Period) > 0 {
			latest = p
		}
	}
	return latest, true
}
