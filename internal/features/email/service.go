package email

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go-erp/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("smtp is not configured")

type EmailService interface {
	Send(ctx context.Context, msg Message) error
}

// Sender delivers a composed message. gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailServiceImpl struct {
	Repo   EmailRepository
	Sender Sender
	From   string
	Logger *zap.Logger
}

func NewEmailService(cfg *config.Config, repo EmailRepository, logger *zap.Logger) EmailService {
	svc := &EmailServiceImpl{Repo: repo, From: cfg.SMTPFrom, Logger: logger}
	if cfg.SMTPHost != "" {
		svc.Sender = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	}
	return svc
}

func (s *EmailServiceImpl) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("no recipients")
	}
	if s.Sender == nil {
		return ErrNotConfigured
	}

	record := &Email{
		ID:         primitive.NewObjectID(),
		From:       s.From,
		To:         msg.To,
		Subject:    msg.Subject,
		EntityType: msg.EntityType,
		EntityID:   msg.EntityID,
		Status:     EmailQueued,
	}
	for _, a := range msg.Attachments {
		record.Attachments = append(record.Attachments, a.Name)
	}
	if s.Repo != nil {
		if err := s.Repo.Create(ctx, record); err != nil {
			s.Logger.Warn("Failed to record outgoing email", zap.Error(err))
		}
	}

	err := s.Sender.DialAndSend(compose(s.From, msg))

	status, errMsg := EmailSent, ""
	if err != nil {
		status, errMsg = EmailFailed, err.Error()
	}
	if s.Repo != nil {
		_ = s.Repo.UpdateStatus(ctx, record.ID, status, errMsg)
	}
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.Logger.Info("Email sent",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

func compose(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTML {
		m.SetBody("text/html", msg.Body)
	} else {
		m.SetBody("text/plain", msg.Body)
	}
	for _, a := range msg.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		m.Attach(a.Name, settings...)
	}
	return m
}
