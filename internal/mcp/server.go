// Package mcp exposes the activities service as MCP tools and resources
// for AI assistants.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mergington/mhs/internal/llm"
	"github.com/mergington/mhs/internal/models"
	"github.com/mergington/mhs/internal/store"
)

// Server wraps the data layer and exposes it as MCP tools.
type Server struct {
	store   store.Store
	emailRE *regexp.Regexp
}

// NewServer creates the MCP server wrapper. emailDomain is the
// institutional domain used to validate signup and issue emails.
func NewServer(s store.Store, emailDomain string) *Server {
	if emailDomain == "" {
		emailDomain = "mergington.edu"
	}
	return &Server{
		store:   s,
		emailRE: regexp.MustCompile(`(?i)^[^@\s]+@` + regexp.QuoteMeta(emailDomain) + `$`),
	}
}

// MCPServer returns a configured mcp-go server with all tools and
// resources registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("mhs", "1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
	)

	srv.AddTool(s.getActivitiesTool())
	srv.AddTool(s.getActivityDetailsTool())
	srv.AddTool(s.checkAvailabilityTool())
	srv.AddTool(s.signupStudentTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())

	srv.AddResource(s.catalogResource())
	srv.AddResource(s.statsResource())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// sortedActivities returns the registry as a name-sorted slice.
func (s *Server) sortedActivities(ctx context.Context) ([]*models.Activity, error) {
	activities, err := s.store.ListActivities(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(activities))
	for name := range activities {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*models.Activity, 0, len(names))
	for _, name := range names {
		out = append(out, activities[name])
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// get_activities
func (s *Server) getActivitiesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_activities",
		mcp.WithDescription("List all extracurricular activities. Returns a JSON array with name, description, schedule, capacity, and enrolled count."),
	)
	return tool, s.handleGetActivities
}

func (s *Server) handleGetActivities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activities, err := s.sortedActivities(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list activities: %v", err)), nil
	}

	type activityOut struct {
		Name            string `json:"name"`
		Description     string `json:"description"`
		Schedule        string `json:"schedule"`
		MaxParticipants int    `json:"max_participants"`
		Enrolled        int    `json:"enrolled"`
	}

	out := make([]activityOut, len(activities))
	for i, a := range activities {
		out[i] = activityOut{
			Name:            a.Name,
			Description:     a.Description,
			Schedule:        a.Schedule,
			MaxParticipants: a.MaxParticipants,
			Enrolled:        len(a.Participants),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal activities: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// get_activity_details
func (s *Server) getActivityDetailsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_activity_details",
		mcp.WithDescription("Get full details for one activity, including its participant roster."),
		mcp.WithString("activity", mcp.Required(), mcp.Description("Activity name")),
	)
	return tool, s.handleGetActivityDetails
}

func (s *Server) handleGetActivityDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("activity")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: activity"), nil
	}

	a, err := s.store.GetActivity(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrActivityNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("activity not found: %s", name)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get activity: %v", err)), nil
	}

	result := map[string]any{
		"name":             a.Name,
		"description":      a.Description,
		"schedule":         a.Schedule,
		"max_participants": a.MaxParticipants,
		"participants":     a.Participants,
		"spots_left":       a.SpotsLeft(),
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal activity: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// check_availability
func (s *Server) checkAvailabilityTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("check_availability",
		mcp.WithDescription("Check open slots for an activity. Returns total, taken, and available slot counts."),
		mcp.WithString("activity", mcp.Required(), mcp.Description("Activity name")),
	)
	return tool, s.handleCheckAvailability
}

func (s *Server) handleCheckAvailability(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("activity")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: activity"), nil
	}

	a, err := s.store.GetActivity(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrActivityNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("activity not found: %s", name)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get activity: %v", err)), nil
	}

	data, err := json.Marshal(models.Availability{
		ActivityName:   a.Name,
		TotalSlots:     a.MaxParticipants,
		TakenSlots:     len(a.Participants),
		AvailableSlots: a.SpotsLeft(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal availability: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// signup_student
func (s *Server) signupStudentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("signup_student",
		mcp.WithDescription("Sign a student up for an activity. The email must use the school domain; duplicate signups and full activities are rejected."),
		mcp.WithString("activity", mcp.Required(), mcp.Description("Activity name")),
		mcp.WithString("email", mcp.Required(), mcp.Description("Student email address")),
	)
	return tool, s.handleSignupStudent
}

func (s *Server) handleSignupStudent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("activity")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: activity"), nil
	}
	email, err := request.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: email"), nil
	}

	email = strings.TrimSpace(email)
	if email == "" || !s.emailRE.MatchString(email) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid email: %s", email)), nil
	}

	if err := s.store.SignUp(ctx, name, email); err != nil {
		switch {
		case errors.Is(err, store.ErrActivityNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("activity not found: %s", name)), nil
		case errors.Is(err, store.ErrAlreadySignedUp):
			return mcp.NewToolResultError(fmt.Sprintf("%s is already signed up for %s", email, name)), nil
		case errors.Is(err, store.ErrActivityFull):
			return mcp.NewToolResultError(fmt.Sprintf("%s is full", name)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("signup failed: %v", err)), nil
		}
	}

	return mcp.NewToolResultText(fmt.Sprintf("Signed up %s for %s", email, name)), nil
}

// list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_issues",
		mcp.WithDescription("List reported issues, optionally filtered by category and/or status. Each issue has id, title, description, category (bug/feature_request/feedback/question), status (open/in_progress/resolved), reporter_email, and optional related_activity."),
		mcp.WithString("category", mcp.Description("Category filter: bug, feature_request, feedback, question")),
		mcp.WithString("status", mcp.Description("Status filter: open, in_progress, resolved")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.IssueListFilter{
		Category: models.IssueCategory(request.GetString("category", "")),
		Status:   models.IssueStatus(request.GetString("status", "")),
	}
	if filter.Category != "" && !models.ValidCategory(filter.Category) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid category: %s", filter.Category)), nil
	}
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", filter.Status)), nil
	}

	issues, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}
	if issues == nil {
		issues = []*models.Issue{}
	}

	data, err := json.Marshal(issues)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("create_issue",
		mcp.WithDescription("Report a new issue about the activities program."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Description("Issue description")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category: bug, feature_request, feedback, question")),
		mcp.WithString("reporter_email", mcp.Required(), mcp.Description("Reporter's school email")),
		mcp.WithString("related_activity", mcp.Description("Related activity name, if any")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	categoryStr, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: category"), nil
	}
	email, err := request.RequireString("reporter_email")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: reporter_email"), nil
	}

	email = strings.TrimSpace(email)
	if email == "" || !s.emailRE.MatchString(email) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid email: %s", email)), nil
	}

	category := models.IssueCategory(categoryStr)
	if !models.ValidCategory(category) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid category: %s", categoryStr)), nil
	}

	related := request.GetString("related_activity", "")
	if related != "" {
		if _, err := s.store.GetActivity(ctx, related); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("related activity not found: %s", related)), nil
		}
	}

	issue := &models.Issue{
		Title:           title,
		Description:     request.GetString("description", ""),
		Category:        category,
		RelatedActivity: related,
		ReporterEmail:   email,
		Status:          models.IssueStatusOpen,
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create issue: %v", err)), nil
	}

	data, err := json.Marshal(issue)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

const (
	catalogURI = "activities://catalog"
	statsURI   = "activities://stats"
)

func (s *Server) catalogResource() (mcp.Resource, server.ResourceHandlerFunc) {
	res := mcp.NewResource(catalogURI, "Activities Catalog",
		mcp.WithResourceDescription("The full catalog of extracurricular activities with schedules and rosters."),
		mcp.WithMIMEType("application/json"),
	)
	return res, s.handleCatalogResource
}

func (s *Server) handleCatalogResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	activities, err := s.store.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	data, err := json.MarshalIndent(activities, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      catalogURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) statsResource() (mcp.Resource, server.ResourceHandlerFunc) {
	res := mcp.NewResource(statsURI, "Participation Statistics",
		mcp.WithResourceDescription("Per-activity enrollment and fill-rate statistics."),
		mcp.WithMIMEType("application/json"),
	)
	return res, s.handleStatsResource
}

func (s *Server) handleStatsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	activities, err := s.store.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	data, err := json.MarshalIndent(llm.BuildParticipationStats(activities), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal stats: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      statsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
