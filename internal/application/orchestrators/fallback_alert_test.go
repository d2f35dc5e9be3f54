package orchestrators

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"helphub/internal/adapters/email"
)

// mockSender implements email.Sender for testing.
type mockSender struct {
	mu   sync.Mutex
	sent []email.SendRequest
	err  error
}

func (m *mockSender) Send(_ context.Context, req email.SendRequest) (email.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return email.SendResult{}, m.err
	}
	m.sent = append(m.sent, req)
	return email.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time { return c.t }

func newTestAlerter(s email.Sender, clock *manualClock) *FallbackAlerter {
	return NewFallbackAlerter(FallbackAlerterDeps{
		Sender:   s,
		To:       []string{"ops@ignouhelphub.com"},
		From:     "alerts@ignouhelphub.com",
		Cooldown: 30 * time.Minute,
		Now:      clock.now,
	})
}

func fallbackEvent(section string) FallbackEvent {
	return FallbackEvent{
		Section: section,
		Locator: "sheetdb.io/api/v1/abc?sheet=Support",
		Err:     errors.New("failed to fetch data: 500 <script>"),
		At:      fixedTime,
	}
}

// TestFallbackAlerter_Throttles tests one alert per section per cooldown.
func TestFallbackAlerter_Throttles(t *testing.T) {
	s := &mockSender{}
	clock := &manualClock{t: fixedTime}
	a := newTestAlerter(s, clock)

	a.NotifyFallback(context.Background(), fallbackEvent(SectionNotices))
	a.NotifyFallback(context.Background(), fallbackEvent(SectionNotices))
	a.NotifyFallback(context.Background(), fallbackEvent(SectionLinks))
	a.Wait()
	if s.count() != 2 {
		t.Fatalf("sent %d alerts, want 2 (one per section)", s.count())
	}

	clock.t = fixedTime.Add(29 * time.Minute)
	a.NotifyFallback(context.Background(), fallbackEvent(SectionNotices))
	a.Wait()
	if s.count() != 2 {
		t.Errorf("sent %d alerts inside cooldown, want 2", s.count())
	}

	clock.t = fixedTime.Add(31 * time.Minute)
	a.NotifyFallback(context.Background(), fallbackEvent(SectionNotices))
	a.Wait()
	if s.count() != 3 {
		t.Errorf("sent %d alerts after cooldown, want 3", s.count())
	}
}

func TestFallbackAlerter_Content(t *testing.T) {
	s := &mockSender{}
	a := newTestAlerter(s, &manualClock{t: fixedTime})
	a.NotifyFallback(context.Background(), fallbackEvent(SectionLinks))
	a.Wait()

	if s.count() != 1 {
		t.Fatalf("sent %d alerts, want 1", s.count())
	}
	req := s.sent[0]
	if req.From != "alerts@ignouhelphub.com" || len(req.To) != 1 || req.To[0] != "ops@ignouhelphub.com" {
		t.Errorf("addressing = from %q to %v", req.From, req.To)
	}
	if !strings.Contains(req.Subject, "links fell back") {
		t.Errorf("subject = %q", req.Subject)
	}
	if strings.Contains(req.HTML, "<script>") {
		t.Error("error text not escaped in HTML body")
	}
	if !strings.Contains(req.Text, "2025-06-01T09:00:00Z") {
		t.Errorf("text body missing timestamp: %q", req.Text)
	}
}

// TestFallbackAlerter_FailedSendRetries verifies a failed send does not hold the cooldown.
func TestFallbackAlerter_FailedSendRetries(t *testing.T) {
	s := &mockSender{err: errors.New("provider down")}
	a := newTestAlerter(s, &manualClock{t: fixedTime})
	a.NotifyFallback(context.Background(), fallbackEvent(SectionNotices))
	a.Wait()

	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	a.NotifyFallback(context.Background(), fallbackEvent(SectionNotices))
	a.Wait()
	if s.count() != 1 {
		t.Errorf("sent %d alerts, want 1 retry after the failure", s.count())
	}
}

func TestFallbackAlerter_NoRecipients(t *testing.T) {
	s := &mockSender{}
	a := NewFallbackAlerter(FallbackAlerterDeps{Sender: s})
	a.NotifyFallback(context.Background(), fallbackEvent(SectionNotices))
	a.Wait()
	if s.count() != 0 {
		t.Errorf("sent %d alerts without recipients, want 0", s.count())
	}
}

// TestFallbackAlerter_SurvivesRequestCancel verifies the send is detached from the request context.
func TestFallbackAlerter_SurvivesRequestCancel(t *testing.T) {
	s := &mockSender{}
	a := newTestAlerter(s, &manualClock{t: fixedTime})
	ctx, cancel := context.WithCancel(context.Background())
	a.NotifyFallback(ctx, fallbackEvent(SectionNotices))
	cancel()
	a.Wait()
	if s.count() != 1 {
		t.Errorf("sent %d alerts, want 1", s.count())
	}
}
