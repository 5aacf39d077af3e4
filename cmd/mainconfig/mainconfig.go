package mainconfig

import (
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	appconfig "github.com/wolfman30/medspa-booking-flow/internal/config"
)

// NewBookingQueueClient returns the SQS client the submitter publishes
// bookings with. AWS_ENDPOINT_OVERRIDE (LocalStack) replaces the queue
// endpoint. With no AWS_REGION the region is taken from the queue URL.
func NewBookingQueueClient(ctx context.Context, cfg *appconfig.Config) (*sqs.Client, error) {
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = QueueRegion(cfg.BookingQueueURL)
	}

	var loaders []func(*config.LoadOptions) error
	if region != "" {
		loaders = append(loaders, config.WithRegion(region))
	}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSpace(cfg.AWSEndpointOverride)
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// QueueRegion extracts the region from an SQS queue URL such as
// https://sqs.us-east-1.amazonaws.com/123456789012/bookings.
func QueueRegion(queueURL string) string {
	u, err := url.Parse(strings.TrimSpace(queueURL))
	if err != nil {
		return ""
	}
	parts := strings.Split(u.Hostname(), ".")
	if len(parts) >= 4 && parts[0] == "sqs" && parts[2] == "amazonaws" {
		return parts[1]
	}
	return ""
}
