package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExpoPushMessage represents a push notification message
type ExpoPushMessage struct {
	To    string                 `json:"to"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
	Sound string                 `json:"sound,omitempty"`
	Badge int                    `json:"badge,omitempty"`
}

// ExpoPushResponse represents the response from Expo push service
type ExpoPushResponse struct {
	Data []struct {
		Status string `json:"status"`
		ID     string `json:"id"`
		Error  string `json:"message,omitempty"`
	} `json:"data"`
}

// NotificationService delivers push notifications. The engine only ever
// calls it best-effort after a transaction has committed; a delivery
// failure never rolls anything back.
type NotificationService struct {
	ExpoPushURL string
}

// NewNotificationService creates a new notification service
func NewNotificationService() *NotificationService {
	return &NotificationService{
		ExpoPushURL: "https://exp.host/--/api/v2/push/send",
	}
}

// SendPushNotification sends a push notification to a user
func (ns *NotificationService) SendPushNotification(pushToken string, title, body string, data map[string]interface{}) error {
	if pushToken == "" {
		return fmt.Errorf("push token is empty")
	}

	message := ExpoPushMessage{
		To:    pushToken,
		Title: title,
		Body:  body,
		Data:  data,
		Sound: "default",
		Badge: 1,
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	req, err := http.NewRequest("POST", ns.ExpoPushURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push notification failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	var pushResponse ExpoPushResponse
	if err := json.Unmarshal(responseBody, &pushResponse); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	// Check if any notifications failed
	for _, result := range pushResponse.Data {
		if result.Status == "error" {
			return fmt.Errorf("push notification failed: %s", result.Error)
		}
	}

	return nil
}

// SendMilestoneNotification tells a member about a freshly earned milestone.
func (ns *NotificationService) SendMilestoneNotification(pushToken, milestoneType, title, message string) error {
	data := map[string]interface{}{
		"type":           "milestone",
		"milestone_type": milestoneType,
		"timestamp":      time.Now().Unix(),
	}
	return ns.SendPushNotification(pushToken, title, message, data)
}
