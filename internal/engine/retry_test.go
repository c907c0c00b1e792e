package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/agenthublabs/agenthooks/internal/domain"
)

func seedFailedAttempt(t *testing.T, ledger *fakeLedger, subscriptionID string) domain.DeliveryAttempt {
	t.Helper()

	attempt, err := ledger.RecordDelivery(context.Background(), domain.DeliveryResult{
		SubscriptionID: subscriptionID,
		Event:          "issue.created",
		Payload:        json.RawMessage(`{"title":"x"}`),
		StatusCode:     http.StatusInternalServerError,
		Success:        false,
		ResponseBody:   "error",
	})
	if err != nil {
		t.Fatalf("seeding attempt: %v", err)
	}
	return *attempt
}

func TestRetry_CreatesLinkedRow(t *testing.T) {
	var receivedHeaders http.Header
	var receivedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header.Clone()
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		receivedBody = buf[:n]
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := &fakeRegistry{subs: []domain.Subscription{
		{ID: "s1", OwnerID: "o1", AgentID: "agent-1", URL: server.URL, Events: []string{"issue.created"}, Secret: "abc", IsActive: true},
	}}
	ledger := &fakeLedger{}
	original := seedFailedAttempt(t, ledger, "s1")
	originalSnapshot := original

	rc := NewRetryCoordinator(registry, ledger, NewExecutor(5*time.Second, testLogger()), testLogger())

	res, err := rc.Retry(context.Background(), original.ID, "o1")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	if !res.Success {
		t.Errorf("retry should have succeeded, got status=%d error=%q", res.StatusCode, res.Error)
	}
	if !res.IsRetry {
		t.Error("result should carry IsRetry")
	}
	if res.OriginalDeliveryID != original.ID {
		t.Errorf("OriginalDeliveryID = %q, want %q", res.OriginalDeliveryID, original.ID)
	}

	// Retry marker and re-signed payload on the wire
	if receivedHeaders.Get(HeaderRetry) != "true" {
		t.Errorf("%s = %q, want %q", HeaderRetry, receivedHeaders.Get(HeaderRetry), "true")
	}
	if got, want := receivedHeaders.Get(HeaderSignature), Sign(receivedBody, "abc"); got != want {
		t.Errorf("signature mismatch:\n  got:  %s\n  want: %s", got, want)
	}

	// A new linked row, the original untouched
	if len(ledger.rows) != 2 {
		t.Fatalf("expected 2 ledger rows after retry, got %d", len(ledger.rows))
	}
	newRow := ledger.rows[1]
	if !newRow.IsRetry {
		t.Error("new ledger row should have is_retry set")
	}
	if newRow.OriginalDeliveryID == nil || *newRow.OriginalDeliveryID != original.ID {
		t.Errorf("new ledger row should link to %q", original.ID)
	}
	if !reflect.DeepEqual(ledger.rows[0], originalSnapshot) {
		t.Error("original ledger row was mutated by the retry")
	}
}

func TestRetry_SamePayloadIsResent(t *testing.T) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&env)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := &fakeRegistry{subs: []domain.Subscription{
		{ID: "s1", OwnerID: "o1", AgentID: "agent-1", URL: server.URL, Events: []string{"issue.created"}, IsActive: true},
	}}
	ledger := &fakeLedger{}
	original := seedFailedAttempt(t, ledger, "s1")

	rc := NewRetryCoordinator(registry, ledger, NewExecutor(5*time.Second, testLogger()), testLogger())

	if _, err := rc.Retry(context.Background(), original.ID, "o1"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	if env.Event != "issue.created" {
		t.Errorf("retried event = %q, want %q", env.Event, "issue.created")
	}
	if string(env.Data) != `{"title":"x"}` {
		t.Errorf("retried payload = %s, want %s", env.Data, `{"title":"x"}`)
	}
}

func TestRetry_CallerCancellationDoesNotAbortDelivery(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	registry := &fakeRegistry{subs: []domain.Subscription{
		{ID: "s1", OwnerID: "o1", AgentID: "agent-1", URL: slow.URL, Events: []string{"issue.created"}, IsActive: true},
	}}
	ledger := &fakeLedger{}
	original := seedFailedAttempt(t, ledger, "s1")

	rc := NewRetryCoordinator(registry, ledger, NewExecutor(5*time.Second, testLogger()), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res, err := rc.Retry(ctx, original.ID, "o1")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !res.Success {
		t.Errorf("retry should complete despite caller cancellation, got status=%d error=%q",
			res.StatusCode, res.Error)
	}
	if len(ledger.rows) != 2 {
		t.Errorf("retry attempt should be recorded, got %d rows", len(ledger.rows))
	}
}

func TestRetry_UnknownDelivery(t *testing.T) {
	registry := &fakeRegistry{}
	ledger := &fakeLedger{}

	rc := NewRetryCoordinator(registry, ledger, NewExecutor(time.Second, testLogger()), testLogger())

	_, err := rc.Retry(context.Background(), "no-such-id", "o1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRetry_ForeignOwnerIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("delivery should not be attempted for a foreign owner")
	}))
	defer server.Close()

	registry := &fakeRegistry{subs: []domain.Subscription{
		{ID: "s1", OwnerID: "o1", AgentID: "agent-1", URL: server.URL, Events: []string{"issue.created"}, IsActive: true},
	}}
	ledger := &fakeLedger{}
	original := seedFailedAttempt(t, ledger, "s1")

	rc := NewRetryCoordinator(registry, ledger, NewExecutor(time.Second, testLogger()), testLogger())

	// Authorization is by subscription ownership
	_, err := rc.Retry(context.Background(), original.ID, "someone-else")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign owner, got %v", err)
	}

	if len(ledger.rows) != 1 {
		t.Errorf("no new ledger row should be written, got %d rows", len(ledger.rows))
	}
}
