package services

import (
	"fmt"
	"log"
	"net/mail"

	"gopkg.in/gomail.v2"
)

// NotificationService sends account and lead notifications by email
type NotificationService interface {
	SendEmail(email, subject, message string) error
	SendLeadAssigned(email, agentName, leadName string, leadID uint) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	emailProvider EmailProvider
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, message string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		emailProvider: emailProvider,
	}
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return s.emailProvider.SendEmail(email, subject, message)
}

// SendLeadAssigned tells an agent a lead was assigned to them
func (s *NotificationServiceImpl) SendLeadAssigned(email, agentName, leadName string, leadID uint) error {
	subject := fmt.Sprintf("New lead assigned: %s", leadName)
	body := fmt.Sprintf("<p>Hi %s,</p><p>The lead <b>%s</b> (#%d) has been assigned to you.</p>", agentName, leadName, leadID)
	return s.SendEmail(email, subject, body)
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(email, subject, message string) error {
	log.Printf("Email sent to %s [%s]: %s", email, subject, message)
	return nil
}

// SMTPEmailProvider delivers HTML mail through an SMTP relay
type SMTPEmailProvider struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail, fromName string) EmailProvider {
	return &SMTPEmailProvider{
		dialer:    gomail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (p *SMTPEmailProvider) SendEmail(email, subject, message string) error {
	m := p.buildMessage(email, subject, message)
	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	return nil
}

func (p *SMTPEmailProvider) buildMessage(email, subject, message string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.fromEmail, p.fromName)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", message)
	return m
}
