package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/projectgrid/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// sesAPI is the subset of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends emails using AWS SES
type SESSender struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESSender loads the default AWS credential chain for region
func NewSESSender(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESSender(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func newSESSender(client sesAPI, fromAddress string, logger *slog.Logger) *SESSender {
	return &SESSender{client: client, fromAddress: fromAddress, logger: logger}
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("recipient is required")
	}

	body := &types.Body{
		Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
	}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send email via SES",
			slog.String("email", logger.SanitizedEmail(msg.To)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "email sent via SES",
		slog.String("email", logger.SanitizedEmail(msg.To)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
