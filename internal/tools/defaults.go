package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jonathan/career-coach/internal/llm"
)

const maxSummaryLen = 200

func defaultTools() []Tool {
	return []Tool{
		{
			ID: Displacement, Name: "AI Displacement Risk", Cost: 0,
			Tier: llm.TierLite, MaxOutputTokens: 2000, Temperature: 0.3,
			metric: numberField("score"),
			summary: func(r map[string]any) string {
				score := formatNumber(r, "score")
				if level, ok := stringAt(r, "risk_level"); ok && level != "" {
					return fmt.Sprintf("Displacement risk score %s (%s)", score, level)
				}
				return "Displacement risk score " + score
			},
		},
		{
			ID: JDMatch, Name: "Job Description Match", Cost: 2,
			Tier: llm.TierStandard, MaxOutputTokens: 3000, Temperature: 0.2, NeedsJobTarget: true,
			metric: numberField("fit_score"),
			summary: func(r map[string]any) string {
				return fmt.Sprintf("Fit score %s, %d missing skills", formatNumber(r, "fit_score"), lenAt(r, "missing_skills"))
			},
		},
		{
			ID: Resume, Name: "Resume Review", Cost: 10,
			Tier: llm.TierAdvanced, MaxOutputTokens: 8000, Temperature: 0.4, NeedsJobTarget: true,
			metric: numberField("overall_score"),
			summary: func(r map[string]any) string {
				return fmt.Sprintf("Resume score %s with %d improvements", formatNumber(r, "overall_score"), lenAt(r, "improvements"))
			},
		},
		{
			ID: CoverLetter, Name: "Cover Letter", Cost: 3,
			Tier: llm.TierStandard, MaxOutputTokens: 3000, Temperature: 0.7, NeedsJobTarget: true,
			summary: func(r map[string]any) string {
				if s, ok := stringAt(r, "subject"); ok && s != "" {
					return s
				}
				letter, _ := stringAt(r, "cover_letter")
				return firstLine(letter)
			},
		},
		{
			ID: LinkedIn, Name: "LinkedIn Optimizer", Cost: 10,
			Tier: llm.TierAdvanced, MaxOutputTokens: 6000, Temperature: 0.6,
			metric: numberField("profile_score"),
			summary: func(r map[string]any) string {
				h, _ := stringAt(r, "headline")
				return "New headline: " + h
			},
		},
		{
			ID: Headshots, Name: "Professional Headshots", Cost: 20,
			Tier: llm.TierAdvanced, MaxOutputTokens: 4000, Temperature: 0.8,
			summary: func(r map[string]any) string {
				return fmt.Sprintf("%d headshot recommendations", lenAt(r, "recommendations"))
			},
		},
		{
			ID: Interview, Name: "Interview Prep", Cost: 3,
			Tier: llm.TierStandard, MaxOutputTokens: 5000, Temperature: 0.5, NeedsJobTarget: true,
			metric: numberField("readiness_score"),
			summary: func(r map[string]any) string {
				return fmt.Sprintf("%d practice questions", lenAt(r, "questions"))
			},
		},
		{
			ID: SkillsGap, Name: "Skills Gap Analysis", Cost: 5,
			Tier: llm.TierStandard, MaxOutputTokens: 4000, Temperature: 0.3, NeedsJobTarget: true,
			metric: numberField("match_percentage"),
			summary: func(r map[string]any) string {
				return fmt.Sprintf("%d skill gaps identified", lenAt(r, "gaps"))
			},
		},
		{
			ID: Roadmap, Name: "Career Roadmap", Cost: 8,
			Tier: llm.TierAdvanced, MaxOutputTokens: 6000, Temperature: 0.5,
			metric: numberField("timeline_months"),
			summary: func(r map[string]any) string {
				return fmt.Sprintf("%d-phase career roadmap", lenAt(r, "phases"))
			},
		},
		{
			ID: Salary, Name: "Salary Benchmark", Cost: 3,
			Tier: llm.TierStandard, MaxOutputTokens: 2500, Temperature: 0.2, NeedsJobTarget: true,
			metric: numberField("salary_range.median"),
			summary: func(r map[string]any) string {
				currency, _ := stringAt(r, "currency")
				return strings.TrimSpace(fmt.Sprintf("Median salary %s %s", formatNumber(r, "salary_range.median"), currency))
			},
		},
		{
			ID: Entrepreneurship, Name: "Entrepreneurship Readiness", Cost: 8,
			Tier: llm.TierAdvanced, MaxOutputTokens: 5000, Temperature: 0.6,
			metric: numberField("readiness_score"),
			summary: func(r map[string]any) string {
				return fmt.Sprintf("Readiness score %s, %d business ideas", formatNumber(r, "readiness_score"), lenAt(r, "business_ideas"))
			},
		},
	}
}

// lookup walks a dotted path through nested objects.
func lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func numberAt(m map[string]any, path string) (float64, bool) {
	v, ok := lookup(m, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func numberField(path string) func(map[string]any) *float64 {
	return func(m map[string]any) *float64 {
		if n, ok := numberAt(m, path); ok {
			return &n
		}
		return nil
	}
}

func stringAt(m map[string]any, path string) (string, bool) {
	v, ok := lookup(m, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lenAt(m map[string]any, path string) int {
	v, _ := lookup(m, path)
	if arr, ok := v.([]any); ok {
		return len(arr)
	}
	return 0
}

func formatNumber(m map[string]any, path string) string {
	n, ok := numberAt(m, path)
	if !ok {
		return "n/a"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
