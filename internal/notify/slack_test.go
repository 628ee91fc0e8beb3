package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlack_OK(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	n := New(ts.URL)
	if _, ok := n.(*Slack); !ok {
		t.Fatalf("expected slack client, got %T", n)
	}
	if err := n.Send(context.Background(), "Title", "Hello"); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if !strings.HasPrefix(got, "*Title*\n") || !strings.HasSuffix(got, "Hello") {
		t.Fatalf("payload not as expected: %q", got)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	err := New(ts.URL).Send(context.Background(), "X", "Y")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error on non-2xx, got %v", err)
	}
}

func TestNew_EmptyWebhookIsNop(t *testing.T) {
	n := New("")
	if _, ok := n.(Nop); !ok {
		t.Fatalf("want Nop, got %T", n)
	}
	if err := n.Send(context.Background(), "t", "x"); err != nil {
		t.Fatalf("Nop should never fail: %v", err)
	}
}
