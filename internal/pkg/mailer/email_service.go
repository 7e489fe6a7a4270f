package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendIngestFailureAlert(toEmail, paperTitle, reason string, attempt int) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
	}
}

// SendIngestFailureAlert tells the paper owner that processing failed and
// the paper needs a manual retry. Best-effort: callers log and move on.
func (s *emailService) SendIngestFailureAlert(toEmail, paperTitle, reason string, attempt int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Paper processing failed: %s", paperTitle))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>We couldn't process your paper</h2>
			<p>Processing attempt %d for <strong>%s</strong> failed:</p>
			<p style="color: #B00020; font-family: monospace;">%s</p>
			<p>The paper stays attached to your session. You can retry processing from the paper list.</p>
		</div>
	`, attempt, paperTitle, reason)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send ingest failure alert to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Ingest failure alert sent to %s\n", toEmail)
	return nil
}
