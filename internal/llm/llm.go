package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mergington/mhs/internal/models"
)

// Client wraps the Anthropic API for the advisory endpoints. A nil Client
// means AI features are disabled; callers must check before use.
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
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// ParticipationStat is one activity's slot usage, formatted for both the
// insights prompt and the API response.
type ParticipationStat struct {
	Activity     string `json:"activity"`
	Participants int    `json:"participants"`
	Capacity     int    `json:"capacity"`
	FillRate     string `json:"fill_rate"`
}

// BuildParticipationStats converts the registry snapshot into sorted
// per-activity fill statistics.
func BuildParticipationStats(activities map[string]*models.Activity) []ParticipationStat {
	names := make([]string, 0, len(activities))
	for name := range activities {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := make([]ParticipationStat, 0, len(names))
	for _, name := range names {
		a := activities[name]
		rate := 0.0
		if a.MaxParticipants > 0 {
			rate = float64(len(a.Participants)) / float64(a.MaxParticipants) * 100
		}
		stats = append(stats, ParticipationStat{
			Activity:     name,
			Participants: len(a.Participants),
			Capacity:     a.MaxParticipants,
			FillRate:     fmt.Sprintf("%.1f%%", rate),
		})
	}
	return stats
}

// activitiesContext renders the registry as a natural-language block for
// system prompts.
func activitiesContext(activities map[string]*models.Activity) string {
	names := make([]string, 0, len(activities))
	for name := range activities {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Available extracurricular activities:\n")
	for _, name := range names {
		a := activities[name]
		sb.WriteString(fmt.Sprintf("- %s:\n", name))
		sb.WriteString(fmt.Sprintf("  Description: %s\n", a.Description))
		sb.WriteString(fmt.Sprintf("  Schedule: %s\n", a.Schedule))
		sb.WriteString(fmt.Sprintf("  Capacity: %d/%d\n\n", len(a.Participants), a.MaxParticipants))
	}
	return sb.String()
}

// buildSuggestPrompt constructs the user prompt for activity suggestions.
func buildSuggestPrompt(activityNames []string, interests []string, gradeLevel int) string {
	sorted := append([]string(nil), activityNames...)
	sort.Strings(sorted)

	return fmt.Sprintf(`Based on the following student information, suggest the top 3 activities from this list
that would be the best fit, and explain why:

Available Activities: %s

Student Profile:
- Grade Level: %d
- Interests: %s

For each suggestion, provide:
1. Activity name
2. Why it's a good fit (2-3 sentences)
3. What the student might enjoy about it

Keep the response concise and encouraging.`,
		strings.Join(sorted, ", "), gradeLevel, strings.Join(interests, ", "))
}

// buildChatPrompts constructs the system and user prompts for the chat
// endpoint. extra is optional caller-supplied context.
func buildChatPrompts(activities map[string]*models.Activity, message, extra string) (system string, user string) {
	system = fmt.Sprintf(`You are a helpful assistant for Mergington High School's
extracurricular activities program. Answer questions about activities, schedules,
and help students find activities that match their interests.

%s

Be friendly, encouraging, and informative.`, activitiesContext(activities))

	user = message
	if extra != "" {
		user = fmt.Sprintf("Context: %s\n\n%s", extra, message)
	}
	return
}

// buildSummaryPrompt constructs the prompt for an enhanced activity
// description.
func buildSummaryPrompt(a *models.Activity) string {
	return fmt.Sprintf(`Create an engaging, student-friendly summary for this extracurricular activity:

Activity: %s
Current Description: %s
Schedule: %s

Write a compelling 3-4 sentence description that would excite high school students
to join. Focus on benefits, skills they'll learn, and the fun they'll have.`,
		a.Name, a.Description, a.Schedule)
}

// buildInsightsPrompt constructs the prompt for participation analysis.
func buildInsightsPrompt(stats []ParticipationStat) string {
	var sb strings.Builder
	for _, s := range stats {
		sb.WriteString(fmt.Sprintf("- %s: %d/%d participants (%s full)\n",
			s.Activity, s.Participants, s.Capacity, s.FillRate))
	}

	return fmt.Sprintf(`Analyze the following participation data for Mergington High School's
extracurricular activities:

%s
Provide:
1. Key observations about participation patterns
2. Which activities are most/least popular
3. 2-3 actionable recommendations to improve overall participation

Keep the analysis concise and practical.`, sb.String())
}

// buildIssuesSummaryPrompt constructs the prompt for the issue tracker
// analysis.
func buildIssuesSummaryPrompt(issues []*models.Issue) string {
	var sb strings.Builder
	for _, i := range issues {
		related := ""
		if i.RelatedActivity != "" {
			related = fmt.Sprintf(" (activity: %s)", i.RelatedActivity)
		}
		sb.WriteString(fmt.Sprintf("- #%d [%s/%s] %s%s: %s\n",
			i.ID, i.Category, i.Status, i.Title, related, i.Description))
	}

	return fmt.Sprintf(`Analyze the following issues reported by students and staff about
Mergington High School's extracurricular activities program:

%s
Provide:
1. Common themes across the reported issues
2. Which issues look most urgent and why
3. 2-3 concrete suggestions for the program coordinators

Keep the analysis concise and practical.`, sb.String())
}

// complete sends a single-turn request and returns the first text block.
func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

// SuggestActivities returns AI suggestions for the given student profile.
func (c *Client) SuggestActivities(ctx context.Context, activityNames []string, interests []string, gradeLevel int) (string, error) {
	return c.complete(ctx, "", buildSuggestPrompt(activityNames, interests, gradeLevel), 600)
}

// Chat answers a free-form question grounded in the registry snapshot.
func (c *Client) Chat(ctx context.Context, activities map[string]*models.Activity, message, extra string) (string, error) {
	system, user := buildChatPrompts(activities, message, extra)
	return c.complete(ctx, system, user, 500)
}

// ActivitySummary generates an enhanced description for one activity.
func (c *Client) ActivitySummary(ctx context.Context, a *models.Activity) (string, error) {
	return c.complete(ctx, "", buildSummaryPrompt(a), 300)
}

// ParticipationInsights analyzes fill rates across all activities.
func (c *Client) ParticipationInsights(ctx context.Context, stats []ParticipationStat) (string, error) {
	return c.complete(ctx, "", buildInsightsPrompt(stats), 600)
}

// IssuesSummary analyzes the reported issues.
func (c *Client) IssuesSummary(ctx context.Context, issues []*models.Issue) (string, error) {
	return c.complete(ctx, "", buildIssuesSummaryPrompt(issues), 800)
}
