// Package sanitize neutralizes prompt-injection phrases in user-supplied
// tool inputs before they reach a prompt template.
//
// This is a filter, not a guarantee: it removes the common instruction-override
// phrasings and bounds input size, nothing more.
package sanitize

import (
	"regexp"
	"unicode/utf8"
)

// Marker replaces every matched injection phrase.
const Marker = "[filtered]"

// DefaultMaxChars is the per-field character cap.
const DefaultMaxChars = 50000

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override|skip)\s+(all\s+|any\s+)?(of\s+)?(the\s+|your\s+|my\s+)?(previous|prior|above|earlier|preceding|original)\s+(instructions?|prompts?|rules?|directions?|context)`),
	regexp.MustCompile(`(?i)\breveal\s+(the\s+|your\s+)?(system\s+prompt|hidden\s+prompt|instructions)`),
	regexp.MustCompile(`(?i)\b(print|show|repeat|output)\s+(the\s+|your\s+)?system\s+prompt`),
	regexp.MustCompile(`(?i)\bnew\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)\b(system|assistant|developer)\s*:`),
	regexp.MustCompile(`(?i)\byou\s+are\s+now\b`),
	regexp.MustCompile(`(?i)\bact\s+as\b`),
	regexp.MustCompile(`(?i)\bpretend\s+(to\s+be|you\s+are)\b`),
	regexp.MustCompile(`(?i)\brole[\s-]?play(\s+as)?\b`),
	regexp.MustCompile(`(?i)\bjailbreak\b|\bDAN\s+mode\b`),
	regexp.MustCompile(`(?i)<\|?\s*(im_start|im_end|system|endoftext)\s*\|?>`),
	regexp.MustCompile(`(?i)\[/?(INST|SYS)\]`),
}

// Report summarizes what Inputs changed.
type Report struct {
	Filtered  int      // number of phrases replaced
	Truncated []string // dotted paths of fields cut to the cap
}

// Changed reports whether any field was modified.
func (r Report) Changed() bool {
	return r.Filtered > 0 || len(r.Truncated) > 0
}

// String replaces injection phrases in s with Marker. Text outside a match is
// returned unchanged.
func String(s string) (string, int) {
	count := 0
	for _, re := range injectionPatterns {
		s = re.ReplaceAllStringFunc(s, func(string) string {
			count++
			return Marker
		})
	}
	return s, count
}

// Truncate cuts s to at most maxChars runes. A value of exactly maxChars is kept.
func Truncate(s string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// Inputs returns a sanitized copy of a tool's inputs. Every string value,
// including those nested inside objects and arrays, is filtered and then
// capped at maxChars. Non-string values are copied as is; the input map is
// not modified.
func Inputs(in map[string]any, maxChars int) (map[string]any, Report) {
	var rep Report
	out := sanitizeMap(in, maxChars, "", &rep)
	return out, rep
}

func sanitizeMap(in map[string]any, maxChars int, prefix string, rep *Report) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = sanitizeValue(v, maxChars, join(prefix, k), rep)
	}
	return out
}

func sanitizeValue(v any, maxChars int, path string, rep *Report) any {
	switch val := v.(type) {
	case string:
		// The cap applies to what the caller sent, so cut before filtering.
		s, cut := Truncate(val, maxChars)
		if cut {
			rep.Truncated = append(rep.Truncated, path)
		}
		s, n := String(s)
		rep.Filtered += n
		return s
	case map[string]any:
		return sanitizeMap(val, maxChars, path, rep)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item, maxChars, path+"[]", rep)
		}
		return out
	default:
		return v
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
