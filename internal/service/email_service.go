package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESClient is the part of the SES v2 client used to deliver mail
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailConfig configures outgoing mail. An empty FromEmail disables sending.
type EmailConfig struct {
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string
	Debug      bool
}

// EmailService sends notification emails through Amazon SES
type EmailService struct {
	client     SESClient
	fromEmail  string
	fromName   string
	appBaseURL string
	logger     *slog.Logger
	debug      bool
}

// NewEmailService loads the default AWS configuration and builds an SES client
func NewEmailService(ctx context.Context, cfg EmailConfig, logger *slog.Logger) (*EmailService, error) {
	logger = logger.With("service", "email")

	if cfg.FromEmail == "" {
		logger.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{logger: logger, debug: cfg.Debug}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email service enabled", "from", cfg.FromEmail, "region", cfg.AWSRegion)
	return NewEmailServiceWithClient(sesv2.NewFromConfig(awsCfg), cfg, logger), nil
}

// NewEmailServiceWithClient wires an existing client
func NewEmailServiceWithClient(client SESClient, cfg EmailConfig, logger *slog.Logger) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: cfg.AppBaseURL,
		logger:     logger,
		debug:      cfg.Debug,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s != nil && s.client != nil
}

var welcomeEmail = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h1>Welcome to Nap Diary</h1>
	<p>Your account {{.Email}} is ready.</p>
	<p>Add your child, then start recording naps from the <a href="{{.Link}}">diary</a>.</p>
	<p style="font-size: 12px; color: #666;">This is an automated email. Please do not reply.</p>
</body>
</html>`))

var guardianEmail = template.Must(template.New("guardian").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h1>You can now record naps for {{.Child}}</h1>
	<p>{{.AddedBy}} added you as a guardian of {{.Child}}.</p>
	<p>Open the <a href="{{.Link}}">children page</a> to switch to {{.Child}}.</p>
	<p style="font-size: 12px; color: #666;">This is an automated email. Please do not reply.</p>
</body>
</html>`))

// SendWelcomeEmail greets a newly registered user
func (s *EmailService) SendWelcomeEmail(ctx context.Context, toEmail string) error {
	if !s.IsEnabled() {
		s.logger.Debug("skipping email send (service disabled)", "kind", "welcome", "to", toEmail)
		return nil
	}

	link := s.appBaseURL + "/children"
	html, err := render(welcomeEmail, map[string]string{"Email": toEmail, "Link": link})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Welcome to Nap Diary!\n\nYour account %s is ready.\nAdd your child, then start recording naps: %s\n", toEmail, link)

	return s.sendEmail(ctx, toEmail, "Welcome to Nap Diary", html, text)
}

// SendGuardianAddedEmail tells a user they were given access to a child
func (s *EmailService) SendGuardianAddedEmail(ctx context.Context, toEmail, childName, addedBy string) error {
	if !s.IsEnabled() {
		s.logger.Debug("skipping email send (service disabled)", "kind", "guardian", "to", toEmail)
		return nil
	}

	link := s.appBaseURL + "/children"
	html, err := render(guardianEmail, map[string]string{"Child": childName, "AddedBy": addedBy, "Link": link})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("%s added you as a guardian of %s.\nSwitch to %s here: %s\n", addedBy, childName, childName, link)

	return s.sendEmail(ctx, toEmail, "You were added as a guardian of "+childName, html, text)
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	if s.debug {
		s.logger.Debug("sending email", "from", fromAddress, "to", toEmail, "subject", subject,
			"html_bytes", len(htmlBody), "text_bytes", len(textBody))
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	s.logger.Info("email sent", "to", toEmail, "subject", subject, "message_id", aws.ToString(result.MessageId))
	return nil
}
