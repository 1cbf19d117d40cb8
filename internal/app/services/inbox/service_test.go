package inbox

import (
	"context"
	"testing"

	"github.com/retailcore/commerce_layer/internal/app/domain/messaging"
	"github.com/retailcore/commerce_layer/internal/app/domain/tenant"
	"github.com/retailcore/commerce_layer/internal/app/storage/memory"
)

var scope = tenant.Scope{CompanyID: "co1"}

const whatsappPayload = `{
	"entry": [{
		"changes": [{
			"value": {
				"messages": [
					{"id": "wamid.1", "from": "15550001111", "timestamp": "1755900000", "text": {"body": "hello"}},
					{"id": "wamid.2", "from": "15550002222", "timestamp": "1755900060", "text": {"body": "is this in stock?"}},
					{"id": "wamid.3", "from": "15550003333", "type": "image"}
				]
			}
		}]
	}]
}`

const instagramPayload = `{
	"entry": [{
		"messaging": [
			{"sender": {"id": "ig-user-9"}, "timestamp": 1755900000000, "message": {"mid": "mid.1", "text": "price?"}}
		]
	}]
}`

func TestIngestWhatsApp(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	stored, err := svc.Ingest(context.Background(), "co1", messaging.ChannelWhatsApp, []byte(whatsappPayload))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	// The image message has no text body and is skipped.
	if len(stored) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(stored))
	}
	if stored[0].Sender != "15550001111" || stored[0].Text != "hello" || stored[0].ExternalID != "wamid.1" {
		t.Fatalf("unexpected message: %+v", stored[0])
	}

	// Webhook retry with the same external ids does not duplicate.
	if _, err := svc.Ingest(context.Background(), "co1", messaging.ChannelWhatsApp, []byte(whatsappPayload)); err != nil {
		t.Fatalf("retry ingest: %v", err)
	}
	all, _ := svc.List(context.Background(), scope, false)
	if len(all) != 2 {
		t.Fatalf("expected 2 messages after retry, got %d", len(all))
	}
}

func TestIngestInstagram(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	stored, err := svc.Ingest(context.Background(), "co1", messaging.ChannelInstagram, []byte(instagramPayload))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(stored) != 1 || stored[0].Sender != "ig-user-9" || stored[0].Text != "price?" {
		t.Fatalf("unexpected messages: %+v", stored)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	if _, err := svc.Ingest(context.Background(), "co1", "telegram", []byte(`{}`)); err == nil {
		t.Fatal("expected unknown channel to fail")
	}
	if _, err := svc.Ingest(context.Background(), "co1", messaging.ChannelWhatsApp, []byte(`{not json`)); err == nil {
		t.Fatal("expected invalid JSON to fail")
	}
}

func TestMarkReadIsTenantScoped(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	stored, _ := svc.Ingest(context.Background(), "co1", messaging.ChannelInstagram, []byte(instagramPayload))
	msg := stored[0]

	if _, err := svc.MarkRead(context.Background(), tenant.Scope{CompanyID: "co2"}, msg.ID); err == nil {
		t.Fatal("expected foreign mark-read to fail")
	}

	read, err := svc.MarkRead(context.Background(), scope, msg.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !read.Read {
		t.Fatal("expected message read")
	}

	unread, _ := svc.List(context.Background(), scope, true)
	if len(unread) != 0 {
		t.Fatalf("expected no unread messages, got %d", len(unread))
	}
}
