package fiscal

import (
	"fmt"
	"strings"
)

// CutoverIndex returns the number of months treated as actuals when the
// cutover month is the last actual month. Unknown months yield 0.
func CutoverIndex(months []string, cutoverMonth string) int {
	for i, m := range months {
		if m == cutoverMonth {
			return i + 1
		}
	}
	return 0
}

// CutoverFromActivity places the cutover right after the last month for
// which active reports data. No active month yields 0.
func CutoverFromActivity(months []string, active func(month string) bool) int {
	if active == nil {
		return 0
	}
	for i := len(months) - 1; i >= 0; i-- {
		if active(months[i]) {
			return i + 1
		}
	}
	return 0
}

// CutoverPolicy selects how a deployment resolves the cutover.
type CutoverPolicy string

const (
	// PolicyLastActual derives the cutover from the last month holding actuals.
	PolicyLastActual CutoverPolicy = "last_actual"
	// PolicyExplicit uses the month named by the caller.
	PolicyExplicit CutoverPolicy = "explicit"
)

// ParsePolicy validates a policy name. Empty defaults to PolicyLastActual.
func ParsePolicy(value string) (CutoverPolicy, error) {
	switch CutoverPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyLastActual:
		return PolicyLastActual, nil
	case PolicyExplicit:
		return PolicyExplicit, nil
	default:
		return "", fmt.Errorf("fiscal: unknown cutover policy %q", value)
	}
}

// Resolve returns the cutover index for months under the policy.
func (p CutoverPolicy) Resolve(months []string, explicitMonth string, active func(month string) bool) int {
	if p == PolicyExplicit {
		return CutoverIndex(months, explicitMonth)
	}
	return CutoverFromActivity(months, active)
}
