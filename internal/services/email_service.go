package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"
	"time"

	"github.com/BradenHooton/carelink/internal/repositories"
	pkglogger "github.com/BradenHooton/carelink/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender delivers one-time codes.
type EmailSender interface {
	SendOTP(ctx context.Context, to string, purpose repositories.OTPPurpose, code string, ttl time.Duration) error
}

// SESClient is the part of *ses.Client used for delivery.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

const otpHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; margin: 24px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{.Title}}</h1></div>
        <p>Hello,</p>
        <p>{{.Intro}}</p>
        <div class="code">{{.Code}}</div>
        <p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
        <div class="footer"><p>This is an automated message from {{.AppName}}. Please do not reply.</p></div>
    </div>
</body>
</html>
`

const otpText = `{{.Title}}

{{.Intro}}

    {{.Code}}

This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.

This is an automated message from {{.AppName}}. Please do not reply.
`

var (
	otpHTMLTemplate = htmltemplate.Must(htmltemplate.New("otp_html").Parse(otpHTML))
	otpTextTemplate = texttemplate.Must(texttemplate.New("otp_text").Parse(otpText))
)

type otpEmailData struct {
	AppName string
	Title   string
	Intro   string
	Code    string
	Minutes int
}

type otpCopy struct {
	subject string
	title   string
	intro   string
}

var otpCopies = map[repositories.OTPPurpose]otpCopy{
	repositories.OTPEmailVerification: {
		subject: "Verify your email address",
		title:   "Verify Your Email Address",
		intro:   "Use the code below to verify your email address.",
	},
	repositories.OTPPasswordReset: {
		subject: "Reset your password",
		title:   "Reset Your Password",
		intro:   "Use the code below to reset your password.",
	},
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   SESClient
	fromAddress string
	appName     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, appName string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, appName, logger), nil
}

func NewEmailServiceWithClient(client SESClient, fromAddress, appName string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		appName:     appName,
		logger:      logger,
	}
}

// SendOTP mails code to the recipient with the copy for purpose.
func (s *AWSSESEmailService) SendOTP(ctx context.Context, to string, purpose repositories.OTPPurpose, code string, ttl time.Duration) error {
	msg, ok := otpCopies[purpose]
	if !ok {
		return fmt.Errorf("unknown otp purpose %q", purpose)
	}

	data := otpEmailData{
		AppName: s.appName,
		Title:   msg.title,
		Intro:   msg.intro,
		Code:    code,
		Minutes: int(ttl.Minutes()),
	}

	var htmlBody, textBody bytes.Buffer
	if err := otpHTMLTemplate.Execute(&htmlBody, data); err != nil {
		return fmt.Errorf("render html body: %w", err)
	}
	if err := otpTextTemplate.Execute(&textBody, data); err != nil {
		return fmt.Errorf("render text body: %w", err)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("%s: %s", s.appName, msg.subject)),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody.String()),
				},
				Text: &types.Content{
					Data: aws.String(textBody.String()),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send otp email via SES",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("otp email sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("purpose", string(purpose)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
