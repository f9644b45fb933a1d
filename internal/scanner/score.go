package scanner

import (
	"math"

	"github.com/complyflow/complyflow/internal/models"
)

// maxImpact caps the summed severity weights; once reached the score is 0.
const maxImpact = 100.0

// CalculateScore converts issues into a 0-100 score. Each issue costs its
// severity weight (critical 10, serious 5, moderate 2, minor 1) and the total
// cost is capped at 100. An empty list scores 100.
func CalculateScore(issues []models.Issue) float64 {
	if len(issues) == 0 {
		return 100
	}
	impact := 0.0
	for _, i := range issues {
		impact += float64(i.Severity.Weight())
	}
	impact = math.Min(impact, maxImpact)
	return round2(math.Max(0, 100-impact))
}

// Summarize counts issues by severity, WCAG criterion and category. All four
// severities are always present in BySeverity.
func Summarize(issues []models.Issue) models.Summary {
	s := models.Summary{
		TotalIssues: len(issues),
		BySeverity:  make(map[models.Severity]int, len(models.Severities)),
		ByWCAG:      make(map[string]int),
		ByCategory:  make(map[string]int),
	}
	for _, sev := range models.Severities {
		s.BySeverity[sev] = 0
	}
	for _, i := range issues {
		s.BySeverity[models.NormalizeSeverity(string(i.Severity))]++

		wcag := i.WCAG
		if wcag == "" {
			wcag = "unknown"
		}
		s.ByWCAG[wcag]++

		cat := i.Category
		if cat == "" {
			cat = "other"
		}
		s.ByCategory[cat]++
	}
	return s
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
