// Package llm turns scan findings into a prioritized remediation plan using
// the Anthropic API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/complyflow/complyflow/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// maxIssueGroups bounds how many distinct issue types are sent in a prompt.
const maxIssueGroups = 25

// RemediationStep is one prioritized action in a plan.
type RemediationStep struct {
	Priority   int      `json:"priority" yaml:"priority"`
	Title      string   `json:"title" yaml:"title"`
	IssueTypes []string `json:"issue_types" yaml:"issue_types"`
	Action     string   `json:"action" yaml:"action"`
}

// Remediation is the plan returned by ExplainScan.
type Remediation struct {
	Summary string            `json:"summary" yaml:"summary"`
	Steps   []RemediationStep `json:"steps" yaml:"steps"`
}

// Client wraps the Anthropic API.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

type issueGroup struct {
	typ      string
	severity models.Severity
	wcag     string
	message  string
	example  string
	count    int
}

// groupIssues collapses issues by type, most severe and most frequent first.
func groupIssues(issues []models.Issue) []issueGroup {
	idx := make(map[string]int)
	var groups []issueGroup
	for _, i := range issues {
		if n, ok := idx[i.Type]; ok {
			groups[n].count++
			continue
		}
		idx[i.Type] = len(groups)
		example := i.Selector
		if example == "" {
			example = i.Element
		}
		groups = append(groups, issueGroup{
			typ: i.Type, severity: i.Severity, wcag: i.WCAG, message: i.Message, example: example, count: 1,
		})
	}
	sort.SliceStable(groups, func(a, b int) bool {
		wa, wb := groups[a].severity.Weight(), groups[b].severity.Weight()
		if wa != wb {
			return wa > wb
		}
		return groups[a].count > groups[b].count
	})
	return groups
}

// buildExplainPrompt constructs the system and user prompts for a remediation plan.
func buildExplainPrompt(url string, result *models.ScanResult) (system string, user string) {
	system = `You are a web accessibility consultant. Given the results of an automated WCAG 2.1 scan of one page, write a remediation plan. Return ONLY a JSON object with these fields:
- "summary": 2-4 sentences on the page's overall accessibility and the biggest risks for users of assistive technology
- "steps": an array of objects ordered by priority, each with:
  - "priority": 1 for the first thing to fix, increasing
  - "title": short imperative title
  - "issue_types": the scan issue types this step resolves
  - "action": concrete instructions a front-end developer can follow, referencing elements or selectors where given

Rules:
- Fix critical issues before serious, serious before moderate, moderate before minor
- Group issue types that share a fix into one step
- Do not invent issues that are not in the scan
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Page: %s\n", url)
	if result == nil {
		sb.WriteString("No scan results available.\n")
		return system, sb.String()
	}

	fmt.Fprintf(&sb, "Score: %.2f/100\n", result.Score)
	fmt.Fprintf(&sb, "Total issues: %d (critical %d, serious %d, moderate %d, minor %d)\n\n",
		result.Summary.TotalIssues,
		result.Summary.BySeverity[models.SeverityCritical],
		result.Summary.BySeverity[models.SeveritySerious],
		result.Summary.BySeverity[models.SeverityModerate],
		result.Summary.BySeverity[models.SeverityMinor])

	groups := groupIssues(result.Issues)
	if len(groups) == 0 {
		sb.WriteString("The scan found no issues.\n")
	}
	for n, g := range groups {
		if n == maxIssueGroups {
			fmt.Fprintf(&sb, "... and %d more issue types\n", len(groups)-maxIssueGroups)
			break
		}
		fmt.Fprintf(&sb, "- %s x%d [%s, WCAG %s]: %s", g.typ, g.count, g.severity, g.wcag, g.message)
		if g.example != "" {
			fmt.Fprintf(&sb, " (e.g. %s)", g.example)
		}
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

// ExplainScan asks the model for a prioritized remediation plan for a scan.
func (c *Client) ExplainScan(ctx context.Context, url string, result *models.ScanResult) (*Remediation, error) {
	systemPrompt, userPrompt := buildExplainPrompt(url, result)

	text, err := c.complete(ctx, systemPrompt, userPrompt, 4096)
	if err != nil {
		return nil, err
	}

	var plan Remediation
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	return &plan, nil
}

// complete sends one user message and returns the first text block with any
// markdown fencing removed.
func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}
	return stripFences(text), nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
