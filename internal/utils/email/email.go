package email

import (
	"fmt"
	"net/smtp"

	"github.com/adakita/loan-service/internal/config"
	"github.com/adakita/loan-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendDecisionNotification tells the record owner that their proposed loan
// limit was approved or rejected
func (s *Sender) SendDecisionNotification(to, username string, limit *models.LoanLimit) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}

	body := fmt.Sprintf("Dear %s,\n\n", username)
	if limit.Status == models.StatusApproved {
		e.Subject = "Loan Limit Approved"
		body += fmt.Sprintf(
			"Your loan limit of %.2f has been approved.\n"+
				"Available amount: %.2f\n"+
				"Decision time: %s\n",
			limit.LimitAmount, limit.AvailableAmount, limit.ModifiedAt.Format("2006-01-02 15:04:05"),
		)
	} else {
		e.Subject = "Loan Limit Rejected"
		body += fmt.Sprintf(
			"Your proposed loan limit of %.2f has been rejected.\n"+
				"Decision time: %s\n"+
				"Please contact support for details.\n",
			limit.LimitAmount, limit.ModifiedAt.Format("2006-01-02 15:04:05"),
		)
	}
	body += "\nBest regards,\nAdakita Loan Service"
	e.Text = []byte(body)

	return s.send(e, to)
}

// SendPendingProposalReminder nudges the record owner about a proposal that
// is still waiting for a checker decision
func (s *Sender) SendPendingProposalReminder(to, username string, limit *models.LoanLimit) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Loan Limit Proposal Pending Review"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your proposed loan limit of %.2f is still awaiting review.\n"+
			"Proposed on: %s\n"+
			"You will be notified as soon as a decision is made.\n"+
			"\nBest regards,\nAdakita Loan Service",
		username, limit.LimitAmount, limit.ModifiedAt.Format("2006-01-02"),
	)
	e.Text = []byte(body)

	return s.send(e, to)
}

func (s *Sender) send(e *email.Email, to string) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
