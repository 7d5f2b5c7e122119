// Package normalize converts heterogeneous backend payloads into the
// canonical entities in internal/models. Raw is the only place the client
// sees backend key spellings; everything past this package works on models.
package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ErrRejected marks a record the normalizer could not turn into an entity.
var ErrRejected = errors.New("record rejected")

// Raw is an undecoded backend record with unknown key spellings.
type Raw map[string]any

// defaultEnvelopes are the wrapper keys list endpoints use.
var defaultEnvelopes = []string{"data", "items", "results", "posts", "comments", "communities", "achievements"}

// DecodeList extracts a list of records from a response body. The list may be
// the top-level value or sit under one of the envelope keys (one level of
// nesting under "data" is also followed). Non-object elements are skipped.
func DecodeList(body []byte, envelopes ...string) ([]Raw, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	if len(envelopes) == 0 {
		envelopes = defaultEnvelopes
	}
	return listFrom(v, envelopes, 2), nil
}

func listFrom(v any, envelopes []string, depth int) []Raw {
	switch t := v.(type) {
	case []any:
		out := make([]Raw, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, Raw(m))
			}
		}
		return out
	case map[string]any:
		if depth == 0 {
			return nil
		}
		for _, key := range envelopes {
			if inner, ok := t[key]; ok && inner != nil {
				if list := listFrom(inner, envelopes, depth-1); list != nil {
					return list
				}
			}
		}
	}
	return nil
}

// Envelope is a decoded response object. Outer is the top-level object and
// carries status flags (success, alreadyUnlocked); Inner is the entity
// payload, unwrapped from "data" or a caller-named key, or Outer itself when
// there is no wrapper.
type Envelope struct {
	Outer Raw
	Inner Raw
	// Key is the wrapper Inner came from, "" when unwrapped.
	Key string
}

// DecodeEnvelope decodes a response object. An empty body yields empty
// records.
func DecodeEnvelope(body []byte, envelopes ...string) (Envelope, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return Envelope{Outer: Raw{}, Inner: Raw{}}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return Envelope{}, err
	}
	outer := Raw(m)
	for _, key := range append([]string{"data"}, envelopes...) {
		if inner, ok := m[key].(map[string]any); ok {
			return Envelope{Outer: outer, Inner: Raw(inner), Key: key}, nil
		}
	}
	return Envelope{Outer: outer, Inner: outer}, nil
}

// DecodeObject returns the entity payload of a response object.
func DecodeObject(body []byte, envelopes ...string) (Raw, error) {
	env, err := DecodeEnvelope(body, envelopes...)
	if err != nil {
		return nil, err
	}
	return env.Inner, nil
}

// Merged overlays the outer record onto the inner one, so flags reported
// beside the payload take precedence over the payload's own.
func (e Envelope) Merged() Raw {
	if e.Key == "" {
		return e.Outer
	}
	out := make(Raw, len(e.Inner)+len(e.Outer))
	for k, v := range e.Inner {
		out[k] = v
	}
	for k, v := range e.Outer {
		if k != e.Key {
			out[k] = v
		}
	}
	return out
}

// Refused reports whether the outer record carries an explicit false
// success flag.
func (e Envelope) Refused() bool {
	return e.Outer.has(successKeys...) && !e.Outer.flag(successKeys...)
}

// Canonical renders an already-normalized entity back into a Raw record using
// the entity's own JSON field names. Feeding the result to the matching
// normalizer yields the same entity.
func Canonical(v any) (Raw, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return Raw(m), nil
}

// Keys returns the record's keys in sorted order, for logging.
func (r Raw) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lookup returns the first present, non-nil value among keys.
func (r Raw) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r Raw) has(keys ...string) bool {
	_, ok := r.lookup(keys...)
	return ok
}

// str returns the first key that coerces to a non-empty string.
func (r Raw) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case map[string]any, Raw, []any:
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// obj returns the first key holding a nested record.
func (r Raw) obj(keys ...string) Raw {
	for _, k := range keys {
		switch m := r[k].(type) {
		case map[string]any:
			return Raw(m)
		case Raw:
			return m
		}
	}
	return nil
}

// count coerces a counter. Lists count their elements; negatives clamp to 0.
func (r Raw) count(keys ...string) int {
	v, ok := r.lookup(keys...)
	if !ok {
		return 0
	}
	n, ok := toInt(v)
	if !ok || n < 0 {
		return 0
	}
	return n
}

// optCount is count for fields whose absence matters.
func (r Raw) optCount(keys ...string) *int {
	v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	n, ok := toInt(v)
	if !ok {
		return nil
	}
	if n < 0 {
		n = 0
	}
	return &n
}

func (r Raw) flag(keys ...string) bool {
	v, _ := r.lookup(keys...)
	return toBool(v)
}

func (r Raw) optFlag(keys ...string) *bool {
	v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	b := toBool(v)
	return &b
}

func (r Raw) time(keys ...string) time.Time {
	v, ok := r.lookup(keys...)
	if !ok {
		return time.Time{}
	}
	return toTime(v)
}

func toInt(v any) (int, bool) {
	if m, ok := v.(Raw); ok {
		v = map[string]any(m)
	}
	switch t := v.(type) {
	case []any:
		return len(t), true
	case map[string]any:
		if inner, ok := Raw(t).lookup("count", "total"); ok {
			return toInt(inner)
		}
		return 0, false
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
		return 0, false
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// toBool accepts native booleans, numeric 1/0 and the strings "1"/"0",
// "true"/"false", "yes"/"no". Anything else is false.
func toBool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y", "t":
			return true
		}
		return false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return false
	}
	return f != 0
}

// toTime accepts RFC 3339 and other common layouts, epoch seconds or
// milliseconds, and {seconds, nanoseconds} timestamp objects. Results are UTC;
// unparseable values yield the zero time.
func toTime(v any) time.Time {
	if m, ok := v.(Raw); ok {
		v = map[string]any(m)
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case map[string]any:
		r := Raw(t)
		secV, ok := r.lookup("_seconds", "seconds")
		if !ok {
			return time.Time{}
		}
		sec, ok := toInt(secV)
		if !ok {
			return time.Time{}
		}
		nanos := r.count("_nanoseconds", "nanoseconds", "nanos")
		return time.Unix(int64(sec), int64(nanos)).UTC()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epoch(f)
		}
		parsed, err := cast.ToTimeE(s)
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return time.Time{}
	}
	return epoch(f)
}

// epoch treats values beyond 1e12 as milliseconds.
func epoch(f float64) time.Time {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
