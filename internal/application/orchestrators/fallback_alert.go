package orchestrators

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"helphub/internal/adapters/email"
)

// DefaultAlertCooldown is the minimum gap between two alerts for one section.
const DefaultAlertCooldown = 30 * time.Minute

// alertSendTimeout bounds a single alert email.
const alertSendTimeout = 10 * time.Second

// FallbackAlerter emails maintainers when a section falls back to fixtures,
// at most once per cooldown per section. Sends happen in the background so
// a page render never waits on the mail provider.
type FallbackAlerter struct {
	sender   email.Sender
	to       []string
	from     string
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
	wg       sync.WaitGroup
}

var _ FallbackNotifier = (*FallbackAlerter)(nil)

// FallbackAlerterDeps holds dependencies for NewFallbackAlerter.
type FallbackAlerterDeps struct {
	Sender   email.Sender
	To       []string
	From     string
	Cooldown time.Duration
	Now      func() time.Time
}

// NewFallbackAlerter creates an alerter. A zero Cooldown uses DefaultAlertCooldown.
// PRE: deps.Sender is set
// POST: Returns an alerter with no section throttled
func NewFallbackAlerter(deps FallbackAlerterDeps) *FallbackAlerter {
	cooldown := deps.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &FallbackAlerter{
		sender:   deps.Sender,
		to:       deps.To,
		from:     deps.From,
		cooldown: cooldown,
		now:      now,
		lastSent: make(map[string]time.Time),
	}
}

// NotifyFallback sends an alert unless one went out for this section within
// the cooldown or no recipients are configured.
func (a *FallbackAlerter) NotifyFallback(ctx context.Context, ev FallbackEvent) {
	if len(a.to) == 0 {
		return
	}
	if !a.claim(ev.Section) {
		slog.Debug("alert_event", "event", "alert_throttled", "section", ev.Section)
		return
	}

	req := fallbackEmail(ev)
	req.To = a.to
	req.From = a.from

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertSendTimeout)
		defer cancel()
		if _, err := a.sender.Send(sendCtx, req); err != nil {
			slog.Error("alert_event", "event", "alert_send_failed", "section", ev.Section, "error", err)
			a.release(ev.Section)
			return
		}
		slog.Info("alert_event", "event", "alert_sent", "section", ev.Section)
	}()
}

// Wait blocks until every in-flight alert has finished.
func (a *FallbackAlerter) Wait() {
	a.wg.Wait()
}

// claim reserves the section's alert slot if the cooldown has passed.
func (a *FallbackAlerter) claim(section string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if last, ok := a.lastSent[section]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastSent[section] = now
	return true
}

// release frees the slot after a failed send so the next fallback retries.
func (a *FallbackAlerter) release(section string) {
	a.mu.Lock()
	delete(a.lastSent, section)
	a.mu.Unlock()
}

func fallbackEmail(ev FallbackEvent) email.SendRequest {
	subject := fmt.Sprintf("[helphub] %s fell back to local data", ev.Section)
	reason := "unknown error"
	if ev.Err != nil {
		reason = ev.Err.Error()
	}
	at := ev.At.UTC().Format(time.RFC3339)
	text := fmt.Sprintf("The %s section could not load from %s at %s and is showing bundled data.\n\nError: %s\n",
		ev.Section, ev.Locator, at, reason)
	body := fmt.Sprintf("<p>The <strong>%s</strong> section could not load from <code>%s</code> at %s and is showing bundled data.</p><p>Error: <code>%s</code></p>",
		html.EscapeString(ev.Section), html.EscapeString(ev.Locator), at, html.EscapeString(reason))
	return email.SendRequest{Subject: subject, HTML: body, Text: text}
}
