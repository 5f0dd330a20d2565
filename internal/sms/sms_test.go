package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotify(t *testing.T) {
	var got sendRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("could not decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "school")
	if err := client.Notify(context.Background(), "+420777000111", "hello"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if got.To != "+420777000111" || got.From != "school" || got.Message != "hello" {
		t.Errorf("unexpected request: %+v", got)
	}
	if auth != "Bearer secret" {
		t.Errorf("authorization = %q", auth)
	}
}

func TestNotifyGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "")
	if err := client.Notify(context.Background(), "+1", "hello"); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}
