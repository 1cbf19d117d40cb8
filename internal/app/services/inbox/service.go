// Package inbox ingests channel webhooks into a per-company message feed.
package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/retailcore/commerce_layer/internal/app/domain/messaging"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Service stores inbound messages from channel webhooks.
type Service struct {
	store storage.MessageStore
	log   *logger.Logger
}

// New constructs an inbox service.
func New(store storage.MessageStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("inbox")
	}
	return &Service{store: store, log: log}
}

// Ingest parses a raw webhook payload and stores the messages it carries.
// Payload shapes differ per channel; unknown entries are skipped. Duplicate
// external ids are absorbed by the store, so webhook retries are safe.
func (s *Service) Ingest(ctx context.Context, companyID string, channel messaging.Channel, payload []byte) ([]messaging.Message, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unsupported channel %q", channel)
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}

	var parsed []messaging.Message
	switch channel {
	case messaging.ChannelWhatsApp:
		parsed = parseWhatsApp(payload)
	case messaging.ChannelInstagram:
		parsed = parseInstagram(payload)
	}

	stored := make([]messaging.Message, 0, len(parsed))
	for _, m := range parsed {
		m.CompanyID = companyID
		m.Channel = channel
		created, err := s.store.CreateMessage(ctx, m)
		if err != nil {
			return stored, err
		}
		stored = append(stored, created)
	}
	s.log.WithField("company_id", companyID).
		WithField("channel", string(channel)).
		WithField("count", len(stored)).
		Info("webhook ingested")
	return stored, nil
}

// parseWhatsApp walks the Cloud API webhook shape:
// entry[].changes[].value.messages[].
func parseWhatsApp(payload []byte) []messaging.Message {
	var out []messaging.Message
	gjson.GetBytes(payload, "entry").ForEach(func(_, entry gjson.Result) bool {
		entry.Get("changes").ForEach(func(_, change gjson.Result) bool {
			change.Get("value.messages").ForEach(func(_, msg gjson.Result) bool {
				text := msg.Get("text.body").String()
				if text == "" {
					return true
				}
				out = append(out, messaging.Message{
					ExternalID: msg.Get("id").String(),
					Sender:     msg.Get("from").String(),
					Text:       text,
					ReceivedAt: unixTime(msg.Get("timestamp").Int()),
				})
				return true
			})
			return true
		})
		return true
	})
	return out
}

// parseInstagram walks the Messenger platform shape:
// entry[].messaging[].message.
func parseInstagram(payload []byte) []messaging.Message {
	var out []messaging.Message
	gjson.GetBytes(payload, "entry").ForEach(func(_, entry gjson.Result) bool {
		entry.Get("messaging").ForEach(func(_, event gjson.Result) bool {
			text := event.Get("message.text").String()
			if text == "" {
				return true
			}
			out = append(out, messaging.Message{
				ExternalID: event.Get("message.mid").String(),
				Sender:     event.Get("sender.id").String(),
				Text:       text,
				ReceivedAt: unixMilliTime(event.Get("timestamp").Int()),
			})
			return true
		})
		return true
	})
	return out
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}

func unixMilliTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

// List lists a company's messages, optionally only unread ones.
func (s *Service) List(ctx context.Context, scope tenant.Scope, unreadOnly bool) ([]messaging.Message, error) {
	all, err := s.store.ListMessages(ctx, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	if !unreadOnly {
		return all, nil
	}
	out := all[:0]
	for _, m := range all {
		if !m.Read {
			out = append(out, m)
		}
	}
	return out, nil
}

// MarkRead flags a message as handled.
func (s *Service) MarkRead(ctx context.Context, scope tenant.Scope, id string) (messaging.Message, error) {
	all, err := s.store.ListMessages(ctx, scope.CompanyID)
	if err != nil {
		return messaging.Message{}, err
	}
	for _, m := range all {
		if m.ID == id {
			return s.store.MarkMessageRead(ctx, id)
		}
	}
	return messaging.Message{}, storage.ErrNotFound
}
