package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/campus-adm/university-api/pkg/config"
)

// ApprovalEmail carries the registration details rendered into the approval
// notification.
type ApprovalEmail struct {
	To             string
	StudentName    string
	DepartmentName string
	SessionName    string
	SessionYear    string
	CourseNames    []string
	TotalCredit    int
}

// Sender delivers approval notifications.
type Sender interface {
	SendApprovalEmail(ctx context.Context, email ApprovalEmail) error
}

// SMTPSender sends approval emails over SMTP.
type SMTPSender struct {
	client *mail.Client
	cfg    config.MailConfig
}

// NewSMTPSender builds a sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, cfg: cfg}, nil
}

// SendApprovalEmail renders and delivers the registration-approved message.
func (s *SMTPSender) SendApprovalEmail(ctx context.Context, email ApprovalEmail) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.FromAddress); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("Registration Approved – %s", email.DepartmentName))
	msg.SetBodyString(mail.TypeTextHTML, renderApprovalBody(email, s.cfg.PortalURL))

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send approval email: %w", err)
	}
	return nil
}

func renderApprovalBody(email ApprovalEmail, portalURL string) string {
	courses := ""
	for _, name := range email.CourseNames {
		courses += fmt.Sprintf("<li>%s</li>", name)
	}
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif;">
<h1>Registration Approved</h1>
<p>Dear %s,</p>
<p>Your course registration for <strong>%s</strong> in the session
<strong>%s %s</strong> has been approved (%d credit hours).</p>
<ul>%s</ul>
<p><a href="%s">View your registration</a></p>
</div>`,
		email.StudentName,
		email.DepartmentName,
		email.SessionName,
		email.SessionYear,
		email.TotalCredit,
		courses,
		portalURL,
	)
}
