package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mergington/mhs/internal/llm"
	"github.com/mergington/mhs/internal/models"
	"github.com/mergington/mhs/internal/store"
	"github.com/mergington/mhs/internal/weather"
	"github.com/mergington/mhs/internal/webhook"
)

// Config carries the non-dependency settings of the API server.
type Config struct {
	// EmailDomain is the institutional email domain students must use.
	EmailDomain string
	// WebhookSecret enables signature verification on the Notion receive
	// path when non-empty.
	WebhookSecret string
	// DefaultLocation is used by the weather endpoint when no location is
	// given.
	DefaultLocation string
}

// Server provides the REST API handlers.
type Server struct {
	store   store.Store
	llm     *llm.Client
	weather *weather.Client
	cfg     Config
	emailRE *regexp.Regexp
}

// NewServer creates a new API server. The llmClient may be nil if no API
// key is configured; AI endpoints then answer 503.
func NewServer(s store.Store, llmClient *llm.Client, wc *weather.Client, cfg Config) *Server {
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "mergington.edu"
	}
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = "New York"
	}
	return &Server{
		store:   s,
		llm:     llmClient,
		weather: wc,
		cfg:     cfg,
		emailRE: regexp.MustCompile(`(?i)^[^@\s]+@` + regexp.QuoteMeta(cfg.EmailDomain) + `$`),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /activities", s.listActivities)
	mux.HandleFunc("GET /activities/{name}/availability", s.activityAvailability)
	mux.HandleFunc("POST /activities/{name}/signup", s.signup)

	mux.HandleFunc("GET /ai/status", s.aiStatus)
	mux.HandleFunc("POST /ai/suggest-activities", s.aiSuggestActivities)
	mux.HandleFunc("POST /ai/chat", s.aiChat)
	mux.HandleFunc("GET /ai/activity-summary/{name}", s.aiActivitySummary)
	mux.HandleFunc("GET /ai/participation-insights", s.aiParticipationInsights)
	mux.HandleFunc("GET /ai/issues-summary", s.aiIssuesSummary)

	mux.HandleFunc("POST /issues", s.createIssue)
	mux.HandleFunc("GET /issues", s.listIssues)
	mux.HandleFunc("GET /issues/{id}", s.getIssue)
	mux.HandleFunc("PATCH /issues/{id}/status", s.updateIssueStatus)

	mux.HandleFunc("POST /webhooks/notion", s.receiveWebhook)
	mux.HandleFunc("GET /webhooks/events", s.listWebhookEvents)
	mux.HandleFunc("GET /webhooks/stats", s.webhookStats)

	mux.HandleFunc("GET /weather", s.getWeather)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// --- Activities ---

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := s.store.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (s *Server) activityAvailability(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	a, err := s.store.GetActivity(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "Activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.Availability{
		ActivityName:   a.Name,
		TotalSlots:     a.MaxParticipants,
		TakenSlots:     len(a.Participants),
		AvailableSlots: a.SpotsLeft(),
	})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	// Activity existence is checked before the email so the error
	// precedence is deterministic: 404 beats 400.
	if _, err := s.store.GetActivity(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "Activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" || !s.emailRE.MatchString(email) {
		writeError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	if err := s.store.SignUp(r.Context(), name, email); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadySignedUp):
			writeError(w, http.StatusConflict, "Already signed up")
		case errors.Is(err, store.ErrActivityFull):
			writeError(w, http.StatusConflict, "Activity is full")
		case errors.Is(err, store.ErrActivityNotFound):
			writeError(w, http.StatusNotFound, "Activity not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Signed up %s for %s", email, name),
	})
}

// --- AI advisory ---

// requireAI writes the 503 capability response when no LLM client is
// configured. Every AI handler calls this first.
func (s *Server) requireAI(w http.ResponseWriter) bool {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable,
			"AI features not enabled. Set the Anthropic API key to enable them.")
		return false
	}
	return true
}

func (s *Server) aiStatus(w http.ResponseWriter, r *http.Request) {
	enabled := s.llm != nil
	msg := "AI features are enabled"
	if !enabled {
		msg = "Set the Anthropic API key to enable AI features"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ai_enabled": enabled,
		"message":    msg,
	})
}

func (s *Server) aiSuggestActivities(w http.ResponseWriter, r *http.Request) {
	if !s.requireAI(w) {
		return
	}

	var req struct {
		StudentInterests []string `json:"student_interests"`
		GradeLevel       int      `json:"grade_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	activities, err := s.store.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	names := make([]string, 0, len(activities))
	for name := range activities {
		names = append(names, name)
	}

	suggestions, err := s.llm.SuggestActivities(r.Context(), names, req.StudentInterests, req.GradeLevel)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("AI Error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions":       suggestions,
		"student_interests": req.StudentInterests,
		"grade_level":       req.GradeLevel,
	})
}

func (s *Server) aiChat(w http.ResponseWriter, r *http.Request) {
	if !s.requireAI(w) {
		return
	}

	var req struct {
		Message string `json:"message"`
		Context string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	activities, err := s.store.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	answer, err := s.llm.Chat(r.Context(), activities, req.Message, req.Context)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("AI Error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response": answer,
		"message":  req.Message,
	})
}

func (s *Server) aiActivitySummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireAI(w) {
		return
	}

	name := r.PathValue("name")
	a, err := s.store.GetActivity(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "Activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary, err := s.llm.ActivitySummary(r.Context(), a)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("AI Error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity_name":        a.Name,
		"original_description": a.Description,
		"ai_enhanced_summary":  summary,
	})
}

func (s *Server) aiParticipationInsights(w http.ResponseWriter, r *http.Request) {
	if !s.requireAI(w) {
		return
	}

	activities, err := s.store.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats := llm.BuildParticipationStats(activities)

	insights, err := s.llm.ParticipationInsights(r.Context(), stats)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("AI Error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"participation_data": stats,
		"ai_insights":        insights,
	})
}

func (s *Server) aiIssuesSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireAI(w) {
		return
	}

	issues, err := s.store.ListIssues(r.Context(), store.IssueListFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	analysis, err := s.llm.IssuesSummary(r.Context(), issues)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("AI Error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_issues": len(issues),
		"ai_analysis":  analysis,
	})
}

// --- Issues ---

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		Category        string `json:"category"`
		RelatedActivity string `json:"related_activity"`
		ReporterEmail   string `json:"reporter_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	email := strings.TrimSpace(req.ReporterEmail)
	if email == "" || !s.emailRE.MatchString(email) {
		writeError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	category := models.IssueCategory(req.Category)
	if !models.ValidCategory(category) {
		writeError(w, http.StatusBadRequest,
			"Invalid category. Must be one of: bug, feature_request, feedback, question")
		return
	}

	if req.RelatedActivity != "" {
		if _, err := s.store.GetActivity(r.Context(), req.RelatedActivity); err != nil {
			if errors.Is(err, store.ErrActivityNotFound) {
				writeError(w, http.StatusNotFound, "Related activity not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	issue := &models.Issue{
		Title:           req.Title,
		Description:     req.Description,
		Category:        category,
		RelatedActivity: req.RelatedActivity,
		ReporterEmail:   email,
		Status:          models.IssueStatusOpen,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateIssue(r.Context(), issue); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter := store.IssueListFilter{
		Category: models.IssueCategory(r.URL.Query().Get("category")),
		Status:   models.IssueStatus(r.URL.Query().Get("status")),
	}
	issues, err := s.store.ListIssues(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func issueIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	id, err := issueIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid issue id")
		return
	}

	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrIssueNotFound) {
			writeError(w, http.StatusNotFound, "Issue not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) updateIssueStatus(w http.ResponseWriter, r *http.Request) {
	id, err := issueIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid issue id")
		return
	}

	status := models.IssueStatus(r.URL.Query().Get("status"))
	if !models.ValidStatus(status) {
		writeError(w, http.StatusBadRequest,
			"Invalid status. Must be one of: open, in_progress, resolved")
		return
	}

	issue, err := s.store.UpdateIssueStatus(r.Context(), id, status)
	if err != nil {
		if errors.Is(err, store.ErrIssueNotFound) {
			writeError(w, http.StatusNotFound, "Issue not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// --- Webhooks ---

func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	// Signature verification is opt-in: with no secret configured the
	// receive path accepts unsigned payloads.
	if s.cfg.WebhookSecret != "" {
		sig := r.Header.Get("X-Notion-Signature")
		ts := r.Header.Get("X-Notion-Timestamp")
		if !webhook.VerifySignature(sig, ts, body, s.cfg.WebhookSecret) {
			writeError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	ev, err := webhook.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	entry := ev.LogEntry(time.Now().UTC())
	if err := s.store.AppendWebhookEvent(r.Context(), entry); err != nil {
		slog.Warn("failed to log webhook event", "event_id", ev.EventID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var dataSourceID any
	if id := ev.DataSourceID(); id != "" {
		dataSourceID = id
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "success",
		"event_id":             ev.EventID,
		"event_type":           ev.Type,
		"data_source_id":       dataSourceID,
		"is_data_source_event": webhook.IsDataSourceEvent(ev.Type),
		"is_legacy_event":      webhook.IsLegacyEvent(ev.Type),
	})
}

func (s *Server) listWebhookEvents(w http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("event_type")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	events, err := s.store.ListWebhookEvents(r.Context(), eventType, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*models.WebhookEventLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  len(events),
		"events": events,
	})
}

func (s *Server) webhookStats(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListWebhookEvents(r.Context(), "", 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var dataSource, legacy, withID int
	byType := make(map[string]int)
	for _, e := range events {
		if webhook.IsDataSourceEvent(e.EventType) {
			dataSource++
		}
		if webhook.IsLegacyEvent(e.EventType) {
			legacy++
		}
		if e.DataSourceID != "" {
			withID++
		}
		byType[e.EventType]++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_events":               len(events),
		"data_source_events":         dataSource,
		"legacy_events":              legacy,
		"events_with_data_source_id": withID,
		"by_event_type":              byType,
	})
}

// --- Weather ---

func (s *Server) getWeather(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		location = s.cfg.DefaultLocation
	}

	report, err := s.weather.Current(r.Context(), location)
	if err != nil {
		if errors.Is(err, weather.ErrLocationNotFound) {
			writeError(w, http.StatusNotFound, "Location not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable,
			fmt.Sprintf("Weather service unavailable: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}
