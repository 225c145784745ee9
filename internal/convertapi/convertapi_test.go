package convertapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/internal/config"
	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
)

func testConfig() *config.Config {
	return &config.Config{
		PrettyJSON:   false,
		DefaultCUAS:  "",
		MaxBodyBytes: 1 << 20,
		ICS: config.ICSConfig{
			CompanyName: "Test",
			ProductName: "Converter",
			Language:    "EN",
		},
	}
}

func TestHandleToJMAPDecodesICS(t *testing.T) {
	cfg := testConfig()
	tz := tzcache.New()
	handler := handleToJMAP(cfg, tz)

	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
		"BEGIN:VEVENT",
		"UID:http-1@example.com",
		"DTSTAMP:20260101T000000Z",
		"DTSTART:20260115T090000Z",
		"SUMMARY:HTTP roundtrip",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	body, err := json.Marshal(toJMAPRequest{ICS: ics})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/to-jmap", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "HTTP roundtrip", out["title"])
}

func TestHandleToJMAPRejectsMalformedICS(t *testing.T) {
	cfg := testConfig()
	tz := tzcache.New()
	handler := handleToJMAP(cfg, tz)

	body, err := json.Marshal(toJMAPRequest{ICS: "not an icalendar body"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/to-jmap", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleToJMAPRejectsNonPost(t *testing.T) {
	cfg := testConfig()
	tz := tzcache.New()
	handler := handleToJMAP(cfg, tz)

	req := httptest.NewRequest(http.MethodGet, "/v1/to-jmap", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleToICalEncodesEvent(t *testing.T) {
	cfg := testConfig()
	tz := tzcache.New()
	handler := handleToICal(cfg, tz)

	event := []byte(`{"@type":"jsevent","uid":"http-2@example.com","title":"Standup","start":"2026-01-15T09:00:00"}`)
	body, err := json.Marshal(toICalRequest{Event: event})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/to-ical", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "UID:http-2@example.com")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Standup")
}

func TestHandleToICalRejectsMissingEvent(t *testing.T) {
	cfg := testConfig()
	tz := tzcache.New()
	handler := handleToICal(cfg, tz)

	body, err := json.Marshal(toICalRequest{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/to-ical", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthReportsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
