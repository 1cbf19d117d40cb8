// Package messaging defines inbound messages captured from channel webhooks.
package messaging

import "time"

// Channel identifies the message source.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
)

// Valid reports whether the channel is supported.
func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelInstagram
}

// Message is one inbound message stored for the CRM inbox.
type Message struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	Channel    Channel   `json:"channel"`
	ExternalID string    `json:"external_id,omitempty"`
	Sender     string    `json:"sender"`
	Text       string    `json:"text"`
	Read       bool      `json:"read"`
	ReceivedAt time.Time `json:"received_at"`
}
