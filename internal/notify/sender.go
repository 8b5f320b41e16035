package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"ximoveis/internal/config"
)

const dialTimeout = 10 * time.Second

// ReviewNotice tells a listing owner the outcome of an admin review.
type ReviewNotice struct {
	To         string
	Name       string
	PropertyID int64
	Title      string
	Approved   bool
	Notes      string
}

func (n ReviewNotice) subject() string {
	if n.Approved {
		return fmt.Sprintf("Imóvel aprovado: %s", n.Title)
	}
	return fmt.Sprintf("Imóvel rejeitado: %s", n.Title)
}

func (n ReviewNotice) body() string {
	verdict := "foi aprovado e já está visível no portal"
	if !n.Approved {
		verdict = "foi rejeitado pela moderação"
	}
	out := fmt.Sprintf("Olá %s,\r\n\r\nSeu imóvel #%d \"%s\" %s.\r\n", n.Name, n.PropertyID, n.Title, verdict)
	if n.Notes != "" {
		out += "\r\nObservações: " + n.Notes + "\r\n"
	}
	return out
}

type Sender interface {
	SendReviewResult(ctx context.Context, n ReviewNotice) error
}

type LogSender struct {
	Logger *logrus.Logger
}

func (s LogSender) SendReviewResult(ctx context.Context, n ReviewNotice) error {
	_ = ctx
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"to":          n.To,
		"property_id": n.PropertyID,
		"approved":    n.Approved,
	}).Info("review notification")
	return nil
}

type SMTPSender struct {
	host string
	port int
	from string
	now  func() time.Time
}

func NewSender(cfg config.Config, logger *logrus.Logger) Sender {
	switch cfg.NotifySender {
	case "smtp":
		return SMTPSender{host: cfg.SMTPHost, port: cfg.SMTPPort, from: cfg.NotifyFrom, now: time.Now}
	default:
		return LogSender{Logger: logger}
	}
}

func (s SMTPSender) SendReviewResult(ctx context.Context, n ReviewNotice) error {
	raw, err := buildMessage(s.from, n, s.now())
	if err != nil {
		return err
	}
	return s.send(ctx, n.To, raw)
}

func buildMessage(from string, n ReviewNotice, at time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", []*mail.Address{{Name: "XImóveis", Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: n.Name, Address: n.To}})
	h.SetSubject(n.subject())
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, n.body()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s SMTPSender) send(ctx context.Context, to string, raw []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}
