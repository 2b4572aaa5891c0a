package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveLinks_Positional(t *testing.T) {
	devices := []models.DeviceConfig{
		{Room: "101", DeviceID: "a"},
		{Room: "102", DeviceID: "b"},
		{Room: "103", DeviceID: "c"},
		{Room: "104", DeviceID: "d"},
	}
	dashboards := []models.DashboardSummary{
		{UID: "u1", URL: "http://g/d/u1"},
		{UID: "u2", URL: "http://g/d/u2"},
	}

	links := ResolveLinks(devices, dashboards)
	assert.Equal(t, map[string]string{
		"a": "http://g/d/u1",
		"b": "http://g/d/u2",
	}, links)
	assert.NotContains(t, links, "c")
	assert.NotContains(t, links, "d")

	assert.Empty(t, ResolveLinks(devices, nil))
	assert.Empty(t, ResolveLinks(nil, dashboards))
}

func TestGrafanaClient_ListDashboards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "dash-db", r.URL.Query().Get("type"))
		assert.Equal(t, "Bearer glsa_token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 9, "uid": "room-b", "title": "Room B", "url": "/d/room-b/room-b", "type": "dash-db"},
			{"id": 3, "uid": "folder", "title": "Folder", "url": "/dashboards/f/folder", "type": "dash-folder"},
			{"id": 2, "uid": "room-a", "title": "Room A", "url": "/d/room-a/room-a", "type": "dash-db"},
			{"id": 5, "uid": "no-url", "title": "Broken", "url": "", "type": "dash-db"},
			{"id": 7, "uid": "ext", "title": "External", "url": "https://other/d/ext", "type": "dash-db"}
		]`))
	}))
	defer server.Close()

	client := NewGrafanaClient(server.URL+"/", "glsa_token", 5*time.Second, zap.NewNop())
	dashboards, err := client.ListDashboards(context.Background())
	require.NoError(t, err)
	require.Len(t, dashboards, 3)

	assert.Equal(t, "room-a", dashboards[0].UID)
	assert.Equal(t, server.URL+"/d/room-a/room-a", dashboards[0].URL)
	assert.Equal(t, "https://other/d/ext", dashboards[1].URL)
	assert.Equal(t, "Room B", dashboards[2].Title)
}

func TestGrafanaClient_ListDashboardsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewGrafanaClient(server.URL, "", time.Second, zap.NewNop())
	_, err := client.ListDashboards(context.Background())
	assert.Error(t, err)
}
