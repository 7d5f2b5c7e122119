package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags consulted by the client core.
const (
	// StrictMutations rolls back optimistic state on indeterminate failures too.
	StrictMutations = "strict_mutations"
	// FeedPrimary gates the aggregated feed endpoint. Unset means enabled.
	FeedPrimary = "feed_primary"
	// AchievementToasts gates achievement announcements. Unset means enabled.
	AchievementToasts = "achievement_toasts"
)

// rule is a parsed flag value: the share of signed-in users (0..100) that
// see the flag. A whole-population rule ignores the user entirely.
type rule struct {
	raw     string
	percent int
	rollout bool
}

func parseRule(value string) rule {
	r := rule{raw: value}
	switch value {
	case "on", "true", "1":
		r.percent = 100
	case "off", "false", "0":
	default:
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || !strings.HasSuffix(value, "%") {
			break
		}
		r.percent = min(max(pct, 0), 100)
		r.rollout = r.percent > 0 && r.percent < 100
	}
	return r
}

func (r rule) allows(name, userID string) bool {
	if !r.rollout {
		return r.percent == 100
	}
	return userID != "" && rolloutBucket(name, userID) < r.percent
}

// Manager evaluates feature flags from a comma-separated key=value list,
// e.g. "strict_mutations=on,feed_primary=off,achievement_toasts=25%".
// Percentages roll out deterministically per user.
type Manager struct {
	rules map[string]rule
}

func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key, value = normalize(key), normalize(value)
		if !ok || key == "" || value == "" {
			continue
		}
		rules[key] = parseRule(value)
	}
	return &Manager{rules: rules}
}

// Enabled reports whether a default-off flag is on for userID.
func (m *Manager) Enabled(name, userID string) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	return ok && r.allows(normalize(name), userID)
}

// EnabledByDefault is Enabled for flags that are on unless configured otherwise.
func (m *Manager) EnabledByDefault(name, userID string) bool {
	if m == nil {
		return true
	}
	if _, ok := m.rules[normalize(name)]; !ok {
		return true
	}
	return m.Enabled(name, userID)
}

// Raw returns the configured values as written.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every known flag for one user. Default-on flags that
// are not configured are reported as enabled.
func (m *Manager) Snapshot(userID string) map[string]bool {
	out := map[string]bool{
		StrictMutations:   m.Enabled(StrictMutations, userID),
		FeedPrimary:       m.EnabledByDefault(FeedPrimary, userID),
		AchievementToasts: m.EnabledByDefault(AchievementToasts, userID),
	}
	if m == nil {
		return out
	}
	for name := range m.rules {
		if _, known := out[name]; !known {
			out[name] = m.Enabled(name, userID)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + userID))
	return int(h.Sum32() % 100)
}
