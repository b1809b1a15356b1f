package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/mailwarm/internal/config"
	"github.com/ignite/mailwarm/internal/pkg/logger"
)

// SESTransport sends via AWS SES v2 template sends. Templates are managed
// in SES directly; this side only names one and supplies its data.
type SESTransport struct {
	client           *sesv2.Client
	configurationSet string
	timeout          time.Duration
}

// NewSESTransport creates an SES transport. Static credentials are used
// when configured, otherwise the default AWS chain applies.
func NewSESTransport(cfg config.MailConfig) (*SESTransport, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SESTransport{
		client:           sesv2.NewFromConfig(awsCfg),
		configurationSet: cfg.ConfigurationSet,
		timeout:          timeout,
	}, nil
}

// Send delivers one message through SES and returns its message id.
func (t *SESTransport) Send(ctx context.Context, msg *Message) (string, error) {
	dataJSON, err := json.Marshal(msg.TemplateData)
	if err != nil {
		return "", fmt.Errorf("encode template data: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Template: &types.Template{
				TemplateName: aws.String(msg.TemplateName),
				TemplateData: aws.String(string(dataJSON)),
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String(CampaignTag), Value: aws.String(msg.CampaignID)},
		},
	}
	if t.configurationSet != "" {
		input.ConfigurationSetName = aws.String(t.configurationSet)
	}

	result, err := t.client.SendEmail(ctx, input)
	if err != nil {
		log.Printf("[SES] Failed to send to %s: %v", logger.RedactEmail(msg.To), err)
		return "", fmt.Errorf("ses send: %w", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	log.Printf("[SES] Sent %s to %s (id: %s)", msg.TemplateName, logger.RedactEmail(msg.To), messageID)
	return messageID, nil
}
