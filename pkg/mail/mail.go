package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/catfact-mailer/pkg/config"
	"github.com/telekom/catfact-mailer/pkg/metrics"
)

const defaultSenderAddress = "noreply@catfacts.local"

// ErrNoRecipient is returned when a message has no recipient address.
var ErrNoRecipient = errors.New("message has no recipient")

// Message is a single plain-text mail to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport delivers one message per call. Implementations must be safe to
// call sequentially from the dispatcher without extra synchronization.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Host() string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport sends mail through an SMTP relay.
type SMTPTransport struct {
	dialer         dialer
	host           string
	port           int
	senderAddress  string
	senderName     string
	retryCount     int
	retryBackoffMs int
	log            *zap.SugaredLogger
}

// NewSMTPTransport builds a transport from the mail configuration. Credentials
// are expected in cfg.Username/cfg.Password (see config.Secrets).
func NewSMTPTransport(cfg config.Mail, log *zap.SugaredLogger) *SMTPTransport {
	log = log.Named("mail")
	log.Infow("Initializing SMTP transport", "host", cfg.Host, "port", cfg.Port, "user", cfg.Username)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warn("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit operator opt-in
	}

	senderAddr := cfg.SenderAddress
	if senderAddr == "" {
		senderAddr = defaultSenderAddress
	}
	senderName := cfg.SenderName
	if senderName == "" {
		senderName = config.DefaultSenderName
	}

	retryCount := cfg.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	retryBackoffMs := cfg.RetryBackoffMs
	if retryBackoffMs <= 0 {
		retryBackoffMs = 100
	}

	return &SMTPTransport{
		dialer:         d,
		host:           cfg.Host,
		port:           cfg.Port,
		senderAddress:  senderAddr,
		senderName:     senderName,
		retryCount:     retryCount,
		retryBackoffMs: retryBackoffMs,
		log:            log,
	}
}

// Send delivers msg, retrying up to retryCount extra times with exponential
// backoff. Nothing is queued: when the last attempt fails the error is returned.
func (s *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		metrics.MailSendFailure.WithLabelValues(s.host).Inc()
		return ErrNoRecipient
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderAddress, s.senderName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	var lastErr error
	backoffMs := s.retryBackoffMs

	for attempt := 0; attempt <= s.retryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		err := s.dialer.DialAndSend(m)
		if err == nil {
			s.log.Debugw("Mail sent", "to", msg.To, "attempt", attempt+1)
			metrics.MailSendSuccess.WithLabelValues(s.host).Inc()
			return nil
		}

		lastErr = err
		if attempt < s.retryCount {
			s.log.Warnw("Send attempt failed, retrying", "to", msg.To, "attempt", attempt+1, "error", err, "retryInMs", backoffMs)
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			case <-ctx.Done():
			}
			backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
		}
	}

	metrics.MailSendFailure.WithLabelValues(s.host).Inc()
	return fmt.Errorf("send mail to %s: %w", msg.To, lastErr)
}

func (s *SMTPTransport) Host() string {
	return s.host
}

func (s *SMTPTransport) Port() int {
	return s.port
}

// LogTransport only logs the messages it is given. It backs --disable-email.
type LogTransport struct {
	log *zap.SugaredLogger
}

func NewLogTransport(log *zap.SugaredLogger) *LogTransport {
	return &LogTransport{log: log.Named("mail")}
}

func (l *LogTransport) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	l.log.Infow("Mail delivery disabled, not sending", "to", msg.To, "subject", msg.Subject, "bodyLength", len(msg.Body))
	return nil
}

func (l *LogTransport) Host() string {
	return "disabled"
}
