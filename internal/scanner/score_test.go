package scanner

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/complyflow/complyflow/internal/models"
)

func issue(sev models.Severity, wcag, cat string) models.Issue {
	return models.Issue{Type: "t", Severity: sev, WCAG: wcag, Category: cat}
}

func TestCalculateScore(t *testing.T) {
	tests := []struct {
		name   string
		issues []models.Issue
		want   float64
	}{
		{"empty", nil, 100},
		{"one critical", []models.Issue{issue(models.SeverityCritical, "1.1.1", "images")}, 90},
		{"one of each", []models.Issue{
			issue(models.SeverityCritical, "", ""),
			issue(models.SeveritySerious, "", ""),
			issue(models.SeverityModerate, "", ""),
			issue(models.SeverityMinor, "", ""),
		}, 82},
		{"unknown severity weighs as minor", []models.Issue{issue("bogus", "", ""), issue("", "", "")}, 98},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateScore(tt.issues))
		})
	}
}

func TestCalculateScore_Floor(t *testing.T) {
	var issues []models.Issue
	for range 11 {
		issues = append(issues, issue(models.SeverityCritical, "1.1.1", "images"))
	}
	assert.Equal(t, 0.0, CalculateScore(issues))
	assert.Equal(t, 0.0, CalculateScore(issues[:10]))
}

func TestCalculateScore_NonEmptyBelow100(t *testing.T) {
	for _, sev := range append(models.Severities, "weird") {
		assert.Less(t, CalculateScore([]models.Issue{issue(sev, "", "")}), 100.0)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]models.Issue{
		issue(models.SeverityCritical, "1.1.1", "images"),
		issue(models.SeverityCritical, "1.1.1", "images"),
		issue(models.SeverityModerate, "1.3.1", "structure"),
		issue("", "", ""),
	})
	assert.Equal(t, 4, s.TotalIssues)
	assert.Equal(t, map[models.Severity]int{
		models.SeverityCritical: 2,
		models.SeveritySerious:  0,
		models.SeverityModerate: 1,
		models.SeverityMinor:    1,
	}, s.BySeverity)
	assert.Equal(t, map[string]int{"1.1.1": 2, "1.3.1": 1, "unknown": 1}, s.ByWCAG)
	assert.Equal(t, map[string]int{"images": 2, "structure": 1, "other": 1}, s.ByCategory)
}

func TestSummarize_EmptyHasAllSeverities(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.TotalIssues)
	assert.Len(t, s.BySeverity, 4)
	assert.Empty(t, s.ByWCAG)
}

func TestScoreAndSummary_OrderIndependent(t *testing.T) {
	sevs := append(models.Severities, "")
	rng := rand.New(rand.NewSource(7))
	var issues []models.Issue
	for i := range 40 {
		issues = append(issues, issue(sevs[rng.Intn(len(sevs))], []string{"1.1.1", "2.4.4", ""}[i%3], []string{"images", "links"}[i%2]))
	}

	wantScore := CalculateScore(issues)
	wantSummary := Summarize(issues)
	for range 20 {
		shuffled := append([]models.Issue(nil), issues...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, wantScore, CalculateScore(shuffled))
		assert.Equal(t, wantSummary, Summarize(shuffled))
	}

	sum := 0
	for _, n := range wantSummary.BySeverity {
		sum += n
	}
	assert.Equal(t, wantSummary.TotalIssues, sum)
	assert.Equal(t, len(issues), wantSummary.TotalIssues)
}
