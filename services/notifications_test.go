package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushTestServer(t *testing.T, received *[]ExpoPushMessage) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg ExpoPushMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		*received = append(*received, msg)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"status":"ok","id":"1"}]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendMilestoneNotification(t *testing.T) {
	var received []ExpoPushMessage
	server := pushTestServer(t, &received)
	ns := &NotificationService{ExpoPushURL: server.URL}

	err := ns.SendMilestoneNotification("ExponentPushToken[abc]", models.MilestoneStreak,
		"7-day streak!", "You have been active 7 days in a row.")
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, "ExponentPushToken[abc]", received[0].To)
	assert.Equal(t, "7-day streak!", received[0].Title)
	assert.Equal(t, "milestone", received[0].Data["type"])
	assert.Equal(t, models.MilestoneStreak, received[0].Data["milestone_type"])
}

func TestSendPushNotificationEmptyToken(t *testing.T) {
	ns := NewNotificationService()
	err := ns.SendPushNotification("", "title", "body", nil)
	assert.Error(t, err)
}

func TestSendPushNotificationDeliveryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"status":"error","message":"DeviceNotRegistered"}]}`))
	}))
	defer server.Close()

	ns := &NotificationService{ExpoPushURL: server.URL}
	err := ns.SendPushNotification("ExponentPushToken[gone]", "title", "body", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DeviceNotRegistered")
}
