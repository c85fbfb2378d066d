package line

// Webhook payload types, limited to the fields the bot consumes.

// WebhookRequest is the body LINE delivers to the webhook endpoint.
type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one webhook event. Only message events with text content are
// processed; everything else is acknowledged and skipped.
type Event struct {
	Type            string          `json:"type"`
	WebhookEventID  string          `json:"webhookEventId"`
	Timestamp       int64           `json:"timestamp"`
	ReplyToken      string          `json:"replyToken"`
	Source          Source          `json:"source"`
	Message         Message         `json:"message"`
	DeliveryContext DeliveryContext `json:"deliveryContext"`
}

type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// IsTextMessage reports whether the event is a user text message the diary
// pipeline should handle.
func (e Event) IsTextMessage() bool {
	return e.Type == "message" && e.Message.Type == "text" && e.Source.UserID != ""
}
