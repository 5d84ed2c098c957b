// Package notification emails customers when a bill is issued.
package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/config"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/period"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

// Sender delivers one message. The provider-specific senders below satisfy it.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Service struct {
	sender Sender
	log    *zap.Logger
}

// NewService picks the sender for cfg.Provider. An empty provider disables
// delivery.
func NewService(cfg config.NotificationConfig, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var sender Sender
	switch cfg.Provider {
	case "":
	case "sendgrid":
		if cfg.SendgridAPIKey == "" {
			return nil, fmt.Errorf("notification: sendgrid provider needs an api key")
		}
		sender = &sendgridSender{cfg: cfg}
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("notification: smtp provider needs a host")
		}
		sender = &smtpSender{cfg: cfg}
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	return &Service{sender: sender, log: log.Named("notification")}, nil
}

// NewWithSender builds a Service around an explicit sender.
func NewWithSender(sender Sender, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{sender: sender, log: log.Named("notification")}
}

// Enabled reports whether messages are actually delivered.
func (s *Service) Enabled() bool { return s.sender != nil }

// BillIssued tells the customer a new bill is due. Customers without an email
// address are skipped.
func (s *Service) BillIssued(ctx context.Context, c storage.Customer, b storage.Bill) error {
	if s.sender == nil {
		return nil
	}
	to := strings.TrimSpace(c.Email)
	if to == "" {
		s.log.Debug("customer has no email, skipping", zap.String("customer_id", c.NationalID))
		return nil
	}
	subject, body := billMessage(c, b)
	if err := s.sender.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("notify %s: %w", c.NationalID, err)
	}
	s.log.Info("bill notification sent", zap.String("customer_id", c.NationalID), zap.Uint("bill_id", b.ID))
	return nil
}

func billMessage(c storage.Customer, b storage.Bill) (string, string) {
	month := b.Month
	if m, err := period.ParseMonth(b.Month); err == nil {
		month = period.Name(m)
	}
	subject := fmt.Sprintf("Your electricity bill for %s %d", month, b.Year)
	due := "on receipt"
	if b.DueDate != nil {
		due = b.DueDate.Format("2006-01-02")
	}
	body := fmt.Sprintf("<p>Dear %s,</p>"+
		"<p>Your bill for %s %d is ready.</p>"+
		"<p>Consumption: %.2f kWh<br>Amount due: %.2f<br>Due date: %s</p>",
		c.Name, month, b.Year, b.ConsumptionKWh, b.AmountDue, due)
	return subject, body
}

type sendgridSender struct {
	cfg config.NotificationConfig
}

func (s *sendgridSender) Send(ctx context.Context, to, subject, body string) error {
	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, body, body)
	client := sendgrid.NewSendClient(s.cfg.SendgridAPIKey)
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type smtpSender struct {
	cfg config.NotificationConfig
}

func (s *smtpSender) Send(_ context.Context, to, subject, body string) error {
	cfg := s.cfg
	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", cfg.FromName, cfg.FromAddress, to, subject, body))

	switch cfg.SMTPEncryption {
	case "ssl":
		// Implicit TLS.
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.SMTPHost})
		if err != nil {
			return err
		}
		defer conn.Close()
		c, err := smtp.NewClient(conn, cfg.SMTPHost)
		if err != nil {
			return err
		}
		defer c.Quit()
		return s.deliver(c, to, msg)

	case "tls":
		c, err := smtp.Dial(addr)
		if err != nil {
			return err
		}
		defer c.Quit()
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: cfg.SMTPHost}); err != nil {
				return err
			}
		}
		return s.deliver(c, to, msg)

	default:
		var auth smtp.Auth
		if cfg.SMTPUsername != "" {
			auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
		}
		return smtp.SendMail(addr, auth, cfg.FromAddress, []string{to}, msg)
	}
}

func (s *smtpSender) deliver(c *smtp.Client, to string, msg []byte) error {
	cfg := s.cfg
	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)); err != nil {
			return err
		}
	}
	if err := c.Mail(cfg.FromAddress); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
