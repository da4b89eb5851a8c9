package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/storyproof/lead-relay/internal/config"
)

func testMessage() *Message {
	return &Message{
		Subject:      "New lead from Acme",
		Body:         Body{ContentType: "HTML", Content: "<table></table>"},
		ToRecipients: []Recipient{NewRecipient("leads@storyproof.io")},
		ReplyTo:      []Recipient{NewRecipient("a@b.com")},
	}
}

func newTestClient(t *testing.T, tokenURL, apiURL string) *Client {
	t.Helper()
	cfg := config.GraphConfig{
		TenantID:     "tenant-a",
		ClientID:     "client-a",
		ClientSecret: "secret-a",
		TokenBaseURL: tokenURL,
		APIBaseURL:   apiURL,
	}
	client, err := NewClient(cfg, "noreply@storyproof.io", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return client
}

func TestClientSendSuccess(t *testing.T) {
	var tokenForm string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token endpoint got method %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "tenant-a") || !strings.Contains(r.URL.Path, "oauth2/v2.0/token") {
			t.Errorf("unexpected token path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected token content type %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		tokenForm = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"T","token_type":"Bearer","expires_in":3599}`)
	}))
	defer tokenSrv.Close()

	var mailCalls int32
	mailSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&mailCalls, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer T" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if !strings.Contains(r.URL.Path, "/v1.0/users/noreply@storyproof.io/sendMail") {
			t.Errorf("unexpected send path %s", r.URL.Path)
		}
		var req struct {
			Message         Message `json:"message"`
			SaveToSentItems bool    `json:"saveToSentItems"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode send payload: %v", err)
		}
		if req.Message.Subject != "New lead from Acme" {
			t.Errorf("unexpected subject %q", req.Message.Subject)
		}
		if !req.SaveToSentItems {
			t.Errorf("expected saveToSentItems to be set")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer mailSrv.Close()

	client := newTestClient(t, tokenSrv.URL, mailSrv.URL)

	raw, err := client.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if raw.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", raw.Code)
	}
	if atomic.LoadInt32(&mailCalls) != 1 {
		t.Fatalf("expected exactly one sendMail call, got %d", mailCalls)
	}

	for _, want := range []string{"grant_type=client_credentials", "client_id=client-a", "client_secret=secret-a", "scope="} {
		if !strings.Contains(tokenForm, want) {
			t.Fatalf("token form missing %q: %s", want, tokenForm)
		}
	}
}

func TestClientTokenFailureShortCircuits(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
	}))
	defer tokenSrv.Close()

	var mailCalls int32
	mailSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&mailCalls, 1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer mailSrv.Close()

	client := newTestClient(t, tokenSrv.URL, mailSrv.URL)

	_, err := client.Send(context.Background(), testMessage())
	if !errors.Is(err, ErrTokenRequest) {
		t.Fatalf("expected ErrTokenRequest, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected upstream status in error, got %v", err)
	}
	if atomic.LoadInt32(&mailCalls) != 0 {
		t.Fatalf("sendMail must not be attempted after a token failure; got %d calls", mailCalls)
	}
}

func TestClientTokenMissingAccessToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token_type":"Bearer"}`)
	}))
	defer tokenSrv.Close()

	client := newTestClient(t, tokenSrv.URL, "http://unused.invalid")

	_, err := client.Send(context.Background(), testMessage())
	if !errors.Is(err, ErrTokenRequest) {
		t.Fatalf("expected ErrTokenRequest for missing access_token, got %v", err)
	}
}

func TestClientSendFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"T"}`)
	}))
	defer tokenSrv.Close()

	mailSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"ErrorInvalidRecipients"}}`)
	}))
	defer mailSrv.Close()

	client := newTestClient(t, tokenSrv.URL, mailSrv.URL)

	raw, err := client.Send(context.Background(), testMessage())
	if !errors.Is(err, ErrSendRequest) {
		t.Fatalf("expected ErrSendRequest, got %v", err)
	}
	if raw == nil || raw.Code != http.StatusBadRequest {
		t.Fatalf("expected raw response with upstream status, got %+v", raw)
	}
	if !strings.Contains(err.Error(), "ErrorInvalidRecipients") {
		t.Fatalf("expected upstream body excerpt in error, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	base := config.GraphConfig{TenantID: "t", ClientID: "c", ClientSecret: "s"}

	if _, err := NewClient(config.GraphConfig{}, "m@x.io", zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
	if _, err := NewClient(base, "", zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing mailbox")
	}
	if _, err := NewClient(base, "m@x.io", zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
