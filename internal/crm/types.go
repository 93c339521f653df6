package crm

// Message direction values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Conversation is a backend conversation summary. An empty ID marks a
// virtual conversation that exists only client-side until the first send.
type Conversation struct {
	ID                 string `json:"id"`
	PhoneNumber        string `json:"phoneNumber"`
	DisplayName        string `json:"displayName,omitempty"`
	LeadID             string `json:"leadId,omitempty"`
	ContactID          string `json:"contactId,omitempty"`
	UnreadCount        int    `json:"unreadCount"`
	LastMessageAt      int64  `json:"lastMessageAt"`
	LastMessagePreview string `json:"lastMessagePreview,omitempty"`
}

// Virtual reports whether the conversation has no server id yet.
func (c *Conversation) Virtual() bool {
	return c.ID == ""
}

// Message is a single SMS in a conversation. Only outbound messages carry
// the pending/failed delivery states; inbound messages arrive delivered.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Direction      string `json:"direction"`
	Body           string `json:"body"`
	Status         string `json:"status"`
	CreatedAt      int64  `json:"createdAt"`
	DeliveredAt    *int64 `json:"deliveredAt,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// ConversationWithMessages pairs a conversation with its message history.
type ConversationWithMessages struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// SendResult is the backend's response to send and retry calls.
type SendResult struct {
	Success        bool   `json:"success"`
	MessageID      string `json:"messageId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Status         string `json:"status,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// Lead is an acquisition lead summary as the dashboard sees it.
type Lead struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Address         string `json:"address,omitempty"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	AskingPrice     int64  `json:"askingPrice,omitempty"`
	Archived        bool   `json:"archived"`
	LastContactDate *int64 `json:"lastContactDate,omitempty"`
}

// LeadTag links a lead to a conversation. Auto tags come from phone-number
// matching; manual tags from explicit user action. Either may be deleted.
type LeadTag struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	LeadID         string `json:"leadId"`
	LeadName       string `json:"leadName,omitempty"`
	IsAutoTagged   bool   `json:"isAutoTagged"`
}

// Template is a reusable message body with {{placeholder}} tokens.
type Template struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Body      string `json:"body"`
	SortOrder int    `json:"sortOrder"`
}
