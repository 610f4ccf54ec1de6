package agg

import (
	"sort"
	"strings"

	"github.com/huangsam/perfscope/schema"
)

// DefaultPlaceholder replaces dynamic segments not named by the sample context.
const DefaultPlaceholder = ":id"

// SegmentPredicate reports whether a path segment is a dynamic value.
type SegmentPredicate func(segment string) bool

// AnyOf combines predicates; a segment is dynamic if any predicate matches.
func AnyOf(preds ...SegmentPredicate) SegmentPredicate {
	return func(segment string) bool {
		for _, p := range preds {
			if p(segment) {
				return true
			}
		}
		return false
	}
}

// IsNumeric matches segments made only of digits.
func IsNumeric(segment string) bool {
	if segment == "" {
		return false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsUUID matches 8-4-4-4-12 hex segments.
func IsUUID(segment string) bool {
	if len(segment) != 36 {
		return false
	}
	for i, r := range segment {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !isHex(r) {
				return false
			}
		}
	}
	return true
}

// IsLongHex matches hex tokens of 16+ characters containing at least one digit,
// such as object IDs and hashes.
func IsLongHex(segment string) bool {
	if len(segment) < 16 {
		return false
	}
	hasDigit := false
	for _, r := range segment {
		if !isHex(r) {
			return false
		}
		if r >= '0' && r <= '9' {
			hasDigit = true
		}
	}
	return hasDigit
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Normalizer canonicalizes raw routes into route patterns.
type Normalizer struct {
	IsDynamic   SegmentPredicate
	Placeholder string
}

// NewNormalizer returns a normalizer using the given predicate. A nil predicate
// uses the default numeric, UUID and long-hex heuristics.
func NewNormalizer(pred SegmentPredicate) *Normalizer {
	if pred == nil {
		pred = AnyOf(IsNumeric, IsUUID, IsLongHex)
	}
	return &Normalizer{IsDynamic: pred, Placeholder: DefaultPlaceholder}
}

// DefaultNormalizer returns the normalizer with the built-in heuristics.
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(nil)
}

// Normalize turns a raw route into its pattern. Segments equal to a param value
// become ":<param>", other dynamic segments become the placeholder, static segments
// are kept verbatim. Screen names without a slash are returned trimmed.
func (n *Normalizer) Normalize(route string, params map[string]string) string {
	route = strings.TrimSpace(route)
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if route == "" {
		return "/"
	}
	if !strings.Contains(route, "/") {
		return route
	}

	paramNames := make([]string, 0, len(params))
	for name := range params {
		paramNames = append(paramNames, name)
	}
	sort.Strings(paramNames)

	var b strings.Builder
	for segment := range strings.SplitSeq(route, "/") {
		if segment == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(n.normalizeSegment(segment, paramNames, params))
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

func (n *Normalizer) normalizeSegment(segment string, paramNames []string, params map[string]string) string {
	for _, name := range paramNames {
		if params[name] == segment {
			return ":" + name
		}
	}
	if n.IsDynamic != nil && n.IsDynamic(segment) {
		return n.Placeholder
	}
	return segment
}

// NormalizeSample normalizes the route (or screen name) of a sample.
func (n *Normalizer) NormalizeSample(s schema.MetricSample) string {
	return n.Normalize(s.RouteKey(), s.Context.Params)
}
