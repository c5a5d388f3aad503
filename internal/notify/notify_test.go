package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mining-ledger-go/internal/database"
	"mining-ledger-go/internal/models"
)

type recordingSender struct {
	mu     sync.Mutex
	sent   []models.EmailNotification
	failTo string
}

func (s *recordingSender) SendEmail(_ context.Context, email models.EmailNotification) error {
	if email.Recipient == s.failTo {
		return errors.New("mailbox unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, email)
	return nil
}

func setupQueue(t *testing.T) *database.Service {
	t.Helper()
	service, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:           filepath.Join(t.TempDir(), "notify_test.db"),
		MaxOpenConns:   4,
		MaxIdleConns:   2,
		PingTimeout:    time.Second,
		BusyTimeout:    5 * time.Second,
		MaxTxRetries:   3,
		TxRetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { service.Close() })
	return service
}

func TestDispatcher_SendsAndRetires(t *testing.T) {
	service := setupQueue(t)
	ctx := context.Background()
	notifier := NewQueueNotifier(service)

	if !notifier.Send(ctx, "ok@example.com", "Deposit confirmed", TemplateDepositConfirmed, map[string]string{"amount": "0.5"}) {
		t.Fatal("Expected first message to queue")
	}
	if !notifier.Send(ctx, "bounce@example.com", "Deposit confirmed", TemplateDepositConfirmed, nil) {
		t.Fatal("Expected second message to queue")
	}
	if notifier.Send(ctx, "", "No recipient", TemplateDepositConfirmed, nil) {
		t.Error("Expected message without recipient to be dropped")
	}

	sender := &recordingSender{failTo: "bounce@example.com"}
	dispatcher := NewDispatcher(DispatcherConfig{
		Store:       service,
		Sender:      sender,
		BatchSize:   10,
		MaxAttempts: 3,
	})

	if sent := dispatcher.DispatchPending(ctx); sent != 1 {
		t.Fatalf("Expected 1 sent on first pass, got %d", sent)
	}
	if len(sender.sent) != 1 || sender.sent[0].Template != TemplateDepositConfirmed {
		t.Fatalf("Unexpected sent messages %+v", sender.sent)
	}
	var vars map[string]string
	if err := json.Unmarshal([]byte(sender.sent[0].Variables), &vars); err != nil || vars["amount"] != "0.5" {
		t.Errorf("Expected variables to round-trip, got %q (%v)", sender.sent[0].Variables, err)
	}

	// The bouncing message is retried until attempts run out
	dispatcher.DispatchPending(ctx)
	dispatcher.DispatchPending(ctx)
	pending, err := service.ListPendingEmails(ctx, 10, 3)
	if err != nil {
		t.Fatalf("ListPendingEmails failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected queue to drain after max attempts, got %d pending", len(pending))
	}
}

func TestDispatcher_ConcurrentDispatchersSendOnce(t *testing.T) {
	service := setupQueue(t)
	ctx := context.Background()
	notifier := NewQueueNotifier(service)

	const queued = 5
	for i := 0; i < queued; i++ {
		notifier.Send(ctx, "user@example.com", "Transfer received", TemplateTransferReceived, nil)
	}

	sender := &recordingSender{}
	dispatchers := []*Dispatcher{
		NewDispatcher(DispatcherConfig{Store: service, Sender: sender, BatchSize: 10}),
		NewDispatcher(DispatcherConfig{Store: service, Sender: sender, BatchSize: 10}),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for _, d := range dispatchers {
		wg.Add(1)
		go func(d *Dispatcher) {
			defer wg.Done()
			sent := d.DispatchPending(ctx)
			mu.Lock()
			total += sent
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	if total != queued {
		t.Errorf("Expected %d deliveries across dispatchers, got %d", queued, total)
	}
	seen := make(map[string]bool)
	for _, e := range sender.sent {
		if seen[e.Id] {
			t.Errorf("Email %s was sent twice", e.Id)
		}
		seen[e.Id] = true
	}
	if len(seen) != queued {
		t.Errorf("Expected %d distinct emails, got %d", queued, len(seen))
	}
}

func TestDispatcher_ReleasesStaleClaims(t *testing.T) {
	service := setupQueue(t)
	ctx := context.Background()

	NewQueueNotifier(service).Send(ctx, "stale@example.com", "hi", TemplateTransferReceived, nil)
	pending, err := service.ListPendingEmails(ctx, 10, 3)
	if err != nil || len(pending) != 1 {
		t.Fatalf("Expected 1 pending email, got %d (%v)", len(pending), err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sender := &recordingSender{}
	dispatcher := NewDispatcher(DispatcherConfig{Store: service, Sender: sender, SendTimeout: time.Minute})
	dispatcher.now = func() time.Time { return now }

	// A fresh claim held by another dispatcher is left alone.
	if ok, err := service.ClaimEmail(ctx, pending[0].Id, now.Add(-time.Minute)); err != nil || !ok {
		t.Fatalf("ClaimEmail failed: %v, %v", ok, err)
	}
	if sent := dispatcher.DispatchPending(ctx); sent != 0 {
		t.Errorf("Expected claimed email to be skipped, got %d sent", sent)
	}
	if ok, _ := service.ClaimEmail(ctx, pending[0].Id, now); ok {
		t.Error("Expected a second claim to lose")
	}

	// Once the claim outlives the send window it returns to the queue.
	now = now.Add(time.Hour)
	if sent := dispatcher.DispatchPending(ctx); sent != 1 {
		t.Errorf("Expected stale claim to be re-sent, got %d sent", sent)
	}
	if len(sender.sent) != 1 || sender.sent[0].Id != pending[0].Id {
		t.Errorf("Unexpected sent messages %+v", sender.sent)
	}
}

func TestDispatcher_StartStop(t *testing.T) {
	service := setupQueue(t)
	sender := &recordingSender{}
	dispatcher := NewDispatcher(DispatcherConfig{
		Store:           service,
		Sender:          sender,
		PollingInterval: 10 * time.Millisecond,
	})

	NewQueueNotifier(service).Send(context.Background(), "a@example.com", "hi", TemplateTransferReceived, nil)

	dispatcher.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for {
		sender.mu.Lock()
		n := len(sender.sent)
		sender.mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	dispatcher.Stop()
	dispatcher.Stop()

	if len(sender.sent) != 1 {
		t.Errorf("Expected 1 email sent by the poll loop, got %d", len(sender.sent))
	}
}

func TestHTTPSender(t *testing.T) {
	var got emailRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got.To == "reject@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte("invalid recipient"))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.Client(), server.URL, "secret", "noreply@example.com")
	err := sender.SendEmail(context.Background(), models.EmailNotification{
		Recipient: "user@example.com",
		Subject:   "Withdrawal approved",
		Template:  TemplateWithdrawalApproved,
		Variables: `{"amount":"0.1"}`,
	})
	if err != nil {
		t.Fatalf("SendEmail failed: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Expected bearer token, got %q", auth)
	}
	if got.From != "noreply@example.com" || got.Template != TemplateWithdrawalApproved {
		t.Errorf("Unexpected request %+v", got)
	}

	if err := sender.SendEmail(context.Background(), models.EmailNotification{Recipient: "reject@example.com"}); err == nil {
		t.Error("Expected non-2xx response to fail")
	}
}
