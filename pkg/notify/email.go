package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/store"
)

// Sender delivers a transactional email. Implementations are best-effort:
// the relay never fails a primary operation on a send error.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends via a plain SMTP relay.
type SMTPSender struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

// Send implements Sender.
func (s *SMTPSender) Send(to, subject, body string) error {
	var auth smtp.Auth
	if s.Username != "" {
		host := s.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.From, to, subject, body)
	return smtp.SendMail(s.Addr, auth, s.From, []string{to}, []byte(msg))
}

// Notifier emits new-message notifications, throttled per thread, and
// admin invites. All sends are asynchronous and failures are logged only.
type Notifier struct {
	sender     Sender
	adminEmail string
	throttle   time.Duration

	mu        sync.Mutex
	perThread map[string]*rate.Limiter
}

// New builds a notifier. A nil sender disables all delivery.
func New(sender Sender, adminEmail string, throttle time.Duration) *Notifier {
	if throttle <= 0 {
		throttle = 2 * time.Hour
	}
	return &Notifier{
		sender:     sender,
		adminEmail: adminEmail,
		throttle:   throttle,
		perThread:  make(map[string]*rate.Limiter),
	}
}

func (n *Notifier) limiter(threadID string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.perThread[threadID]
	if !ok {
		l = rate.NewLimiter(rate.Every(n.throttle), 1)
		n.perThread[threadID] = l
	}
	return l
}

// MessageReceived notifies the counter-party of a new message, at most
// once per thread per throttle window. Muted threads are skipped. Never
// blocks and never returns an error.
func (n *Notifier) MessageReceived(t *models.Thread, sender models.Role, preview string) {
	if n == nil || n.sender == nil || t == nil {
		return
	}
	if t.NotificationsMuted {
		return
	}
	to := n.adminEmail
	if sender == models.RoleAdmin {
		to = t.ClientEmail
	}
	if to == "" {
		return
	}
	if !n.limiter(t.ID).Allow() {
		return
	}
	threadID := t.ID
	go func() {
		if err := n.sender.Send(to, "New message", preview); err != nil {
			logger.Warn("notification_send_failed", "thread", threadID, "error", err)
			return
		}
		// best-effort bookkeeping; a failed write only skews the
		// advisory timestamp
		if err := store.SetNotified(threadID, time.Now().UTC().UnixNano()); err != nil {
			logger.Warn("notification_mark_failed", "thread", threadID, "error", err)
		}
	}()
}

// Invite emails an onboarding invite. Unlike message notifications this is
// a caller-visible operation, so the error is returned.
func (n *Notifier) Invite(email string) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("email delivery is not configured")
	}
	return n.sender.Send(email, "You have been invited",
		"You have been invited to join the client portal. Open the app and sign up with this address.")
}
