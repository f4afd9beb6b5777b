package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergington/mhs/internal/models"
	"github.com/mergington/mhs/internal/store"
	"github.com/mergington/mhs/internal/weather"
)

// newTestServer returns a handler over a fresh memory store with AI
// disabled, plus the store for direct seeding.
func newTestServer(t *testing.T) (http.Handler, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	srv := NewServer(s, nil, weather.NewClient(), Config{})
	return srv.Router(), s
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

// --- Activities ---

func TestListActivities(t *testing.T) {
	h, _ := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/activities", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var activities map[string]*models.Activity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activities))
	assert.Len(t, activities, 9)

	chess := activities["Chess Club"]
	require.NotNil(t, chess)
	assert.Equal(t, 12, chess.MaxParticipants)
	assert.Contains(t, chess.Participants, "michael@mergington.edu")
}

func TestActivityAvailability(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "GET", "/activities/Chess%20Club/availability", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chess Club", body["activity_name"])
	assert.EqualValues(t, 12, body["total_slots"])
	assert.EqualValues(t, 2, body["taken_slots"])
	assert.EqualValues(t, 10, body["available_slots"])
}

func TestActivityAvailability_NotFound(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "GET", "/activities/Knitting%20Circle/availability", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Activity not found", body["detail"])
}

func TestSignup(t *testing.T) {
	h, s := newTestServer(t)

	w, body := doJSON(t, h, "POST", "/activities/Chess%20Club/signup?email=newstudent@mergington.edu", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Signed up newstudent@mergington.edu for Chess Club", body["message"])

	chess, err := s.GetActivity(t.Context(), "Chess Club")
	require.NoError(t, err)
	assert.Contains(t, chess.Participants, "newstudent@mergington.edu")
}

func TestSignup_TrimsWhitespace(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "POST", "/activities/Chess%20Club/signup?email=%20padded@mergington.edu%20", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Signed up padded@mergington.edu for Chess Club", body["message"])
}

func TestSignup_InvalidEmail(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []string{
		"",
		"not-an-email",
		"student@gmail.com",
		"student@mergington.edu.evil.com",
		"bad%20name@mergington.edu",
	}
	for _, email := range tests {
		t.Run(email, func(t *testing.T) {
			w, body := doJSON(t, h, "POST", "/activities/Chess%20Club/signup?email="+email, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid email", body["detail"])
		})
	}
}

func TestSignup_ActivityNotFoundBeatsBadEmail(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "POST", "/activities/Knitting%20Circle/signup?email=bad", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Activity not found", body["detail"])
}

func TestSignup_Duplicate(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "POST", "/activities/Chess%20Club/signup?email=MICHAEL@mergington.edu", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Already signed up", body["detail"])
}

func TestSignup_Full(t *testing.T) {
	h, s := newTestServer(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.SignUp(t.Context(), "Chess Club", fmt.Sprintf("filler%d@mergington.edu", i)))
	}

	w, body := doJSON(t, h, "POST", "/activities/Chess%20Club/signup?email=late@mergington.edu", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Activity is full", body["detail"])
}

// --- AI advisory ---

func TestAIStatus_Disabled(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "GET", "/ai/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["ai_enabled"])
	assert.Equal(t, "Set the Anthropic API key to enable AI features", body["message"])
}

func TestAIEndpoints_503WhenDisabled(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		method string
		target string
		body   string
	}{
		{"POST", "/ai/suggest-activities", `{"student_interests":["chess"],"grade_level":10}`},
		{"POST", "/ai/chat", `{"message":"hi"}`},
		{"GET", "/ai/activity-summary/Chess%20Club", ""},
		{"GET", "/ai/participation-insights", ""},
		{"GET", "/ai/issues-summary", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w, body := doJSON(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, "AI features not enabled. Set the Anthropic API key to enable them.", body["detail"])
		})
	}
}

// --- Issues ---

func TestCreateIssue(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "POST", "/issues", `{
		"title": "Chess boards are missing pieces",
		"description": "Two boards have no queens",
		"category": "bug",
		"related_activity": "Chess Club",
		"reporter_email": "michael@mergington.edu"
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, "open", body["status"])
	assert.Equal(t, "Chess Club", body["related_activity"])
	assert.NotEmpty(t, body["created_at"])
}

func TestCreateIssue_Validation(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{
			"invalid email",
			`{"title":"t","category":"bug","reporter_email":"x@gmail.com"}`,
			http.StatusBadRequest, "Invalid email",
		},
		{
			"invalid category",
			`{"title":"t","category":"complaint","reporter_email":"a@mergington.edu"}`,
			http.StatusBadRequest, "Invalid category. Must be one of: bug, feature_request, feedback, question",
		},
		{
			"related activity not found",
			`{"title":"t","category":"bug","related_activity":"Knitting Circle","reporter_email":"a@mergington.edu"}`,
			http.StatusNotFound, "Related activity not found",
		},
		{
			"malformed json",
			`{`,
			http.StatusBadRequest, "invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := doJSON(t, h, "POST", "/issues", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantDetail, body["detail"])
		})
	}
}

func seedIssues(t *testing.T, h http.Handler) {
	t.Helper()
	for _, body := range []string{
		`{"title":"bug one","category":"bug","reporter_email":"a@mergington.edu"}`,
		`{"title":"idea","category":"feature_request","reporter_email":"b@mergington.edu"}`,
		`{"title":"bug two","category":"bug","reporter_email":"c@mergington.edu"}`,
	} {
		w, _ := doJSON(t, h, "POST", "/issues", body)
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestListIssues(t *testing.T) {
	h, _ := newTestServer(t)
	seedIssues(t, h)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/issues", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var issues []*models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issues))
	assert.Len(t, issues, 3)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/issues?category=bug", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issues))
	assert.Len(t, issues, 2)
}

func TestListIssues_EmptyIsArray(t *testing.T) {
	h, _ := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/issues", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestIssueStatusFlow(t *testing.T) {
	h, _ := newTestServer(t)
	seedIssues(t, h)

	w, body := doJSON(t, h, "PATCH", "/issues/1/status?status=resolved", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resolved", body["status"])

	// Filter by the new status
	wr := httptest.NewRecorder()
	h.ServeHTTP(wr, httptest.NewRequest("GET", "/issues?status=resolved", nil))
	var issues []*models.Issue
	require.NoError(t, json.Unmarshal(wr.Body.Bytes(), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "bug one", issues[0].Title)

	// Invalid status value
	w, body = doJSON(t, h, "PATCH", "/issues/1/status?status=closed", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status. Must be one of: open, in_progress, resolved", body["detail"])

	// Unknown issue
	w, body = doJSON(t, h, "PATCH", "/issues/99/status?status=resolved", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Issue not found", body["detail"])
}

func TestGetIssue(t *testing.T) {
	h, _ := newTestServer(t)
	seedIssues(t, h)

	w, body := doJSON(t, h, "GET", "/issues/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idea", body["title"])

	w, body = doJSON(t, h, "GET", "/issues/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Issue not found", body["detail"])

	w, body = doJSON(t, h, "GET", "/issues/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid issue id", body["detail"])
}

// --- Webhooks ---

const dataSourceEventBody = `{
	"type": "data_source.content_updated",
	"event_id": "evt-123",
	"workspace_id": "ws-1",
	"data": {
		"object": "page",
		"id": "page-abc",
		"parent": {"type": "data_source", "data_source_id": "ds-789"}
	}
}`

const legacyEventBody = `{
	"type": "page.created",
	"event_id": "evt-456",
	"workspace_id": "ws-1",
	"data": {"object": "page", "id": "page-def", "parent": {"type": "database_id", "database_id": "db-1"}}
}`

func TestReceiveWebhook_DataSourceEvent(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "POST", "/webhooks/notion", dataSourceEventBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "evt-123", body["event_id"])
	assert.Equal(t, "data_source.content_updated", body["event_type"])
	assert.Equal(t, "ds-789", body["data_source_id"])
	assert.Equal(t, true, body["is_data_source_event"])
	assert.Equal(t, false, body["is_legacy_event"])
}

func TestReceiveWebhook_LegacyEvent(t *testing.T) {
	h, _ := newTestServer(t)

	w, body := doJSON(t, h, "POST", "/webhooks/notion", legacyEventBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["data_source_id"])
	assert.Equal(t, false, body["is_data_source_event"])
	assert.Equal(t, true, body["is_legacy_event"])
}

func TestReceiveWebhook_Invalid(t *testing.T) {
	h, _ := newTestServer(t)

	for _, payload := range []string{
		`{not json`,
		`{"type":"comment.created","event_id":"e","data":{"id":"x"}}`,
		`{"type":"page.created","data":{"id":"x"}}`,
	} {
		w, body := doJSON(t, h, "POST", "/webhooks/notion", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid webhook payload", body["detail"])
	}
}

func TestReceiveWebhook_SignatureVerification(t *testing.T) {
	s := store.NewMemoryStore()
	secret := "whsec_test"
	srv := NewServer(s, nil, weather.NewClient(), Config{WebhookSecret: secret})
	h := srv.Router()

	ts := "1700000000"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":" + legacyEventBody))
	sig := hex.EncodeToString(mac.Sum(nil))

	// Valid signature
	r := httptest.NewRequest("POST", "/webhooks/notion", strings.NewReader(legacyEventBody))
	r.Header.Set("X-Notion-Signature", sig)
	r.Header.Set("X-Notion-Timestamp", ts)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	// Missing signature
	r = httptest.NewRequest("POST", "/webhooks/notion", strings.NewReader(legacyEventBody))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong signature
	r = httptest.NewRequest("POST", "/webhooks/notion", strings.NewReader(legacyEventBody))
	r.Header.Set("X-Notion-Signature", "deadbeef")
	r.Header.Set("X-Notion-Timestamp", ts)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListWebhookEvents(t *testing.T) {
	h, _ := newTestServer(t)

	for _, payload := range []string{dataSourceEventBody, legacyEventBody} {
		w, _ := doJSON(t, h, "POST", "/webhooks/notion", payload)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, body := doJSON(t, h, "GET", "/webhooks/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["total"])

	w, body = doJSON(t, h, "GET", "/webhooks/events?event_type=page.created", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	// total reflects the returned slice after the limit is applied
	w, body = doJSON(t, h, "GET", "/webhooks/events?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	w, body = doJSON(t, h, "GET", "/webhooks/events?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid limit", body["detail"])
}

func TestWebhookStats(t *testing.T) {
	h, _ := newTestServer(t)

	for _, payload := range []string{dataSourceEventBody, legacyEventBody, legacyEventBody} {
		w, _ := doJSON(t, h, "POST", "/webhooks/notion", payload)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, body := doJSON(t, h, "GET", "/webhooks/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["total_events"])
	assert.EqualValues(t, 1, body["data_source_events"])
	assert.EqualValues(t, 2, body["legacy_events"])
	assert.EqualValues(t, 1, body["events_with_data_source_id"])

	byType, ok := body["by_event_type"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, byType["page.created"])
	assert.EqualValues(t, 1, byType["data_source.content_updated"])
}

// --- Weather ---

func newWeatherBackedServer(t *testing.T, geocodeBody, forecastBody string) http.Handler {
	t.Helper()

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(geocodeBody))
	}))
	t.Cleanup(geo.Close)
	fc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(forecastBody))
	}))
	t.Cleanup(fc.Close)

	wc := weather.NewClient()
	wc.GeocodeURL = geo.URL
	wc.ForecastURL = fc.URL

	srv := NewServer(store.NewMemoryStore(), nil, wc, Config{})
	return srv.Router()
}

func TestGetWeather(t *testing.T) {
	h := newWeatherBackedServer(t,
		`{"results":[{"name":"New York","country":"United States","latitude":40.71,"longitude":-74.01}]}`,
		`{"current":{"temperature_2m":72.5,"apparent_temperature":70.1,"relative_humidity_2m":45,"weather_code":0,"wind_speed_10m":8.3,"precipitation":0,"time":"2026-08-27T14:00"}}`,
	)

	w, body := doJSON(t, h, "GET", "/weather", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "New York, United States", body["location"])
	assert.Equal(t, 72.5, body["temperature"])
	assert.Equal(t, "Clear sky", body["conditions"])
}

func TestGetWeather_LocationNotFound(t *testing.T) {
	h := newWeatherBackedServer(t, `{"results":[]}`, `{}`)

	w, body := doJSON(t, h, "GET", "/weather?location=Nowhereville", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Location not found", body["detail"])
}

func TestGetWeather_ServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	wc := weather.NewClient()
	wc.GeocodeURL = srv.URL
	wc.ForecastURL = srv.URL
	h := NewServer(store.NewMemoryStore(), nil, wc, Config{}).Router()

	w, body := doJSON(t, h, "GET", "/weather", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, body["detail"], "Weather service unavailable")
}

// --- CORS ---

func TestCORS(t *testing.T) {
	h, _ := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/activities", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/activities", nil))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
