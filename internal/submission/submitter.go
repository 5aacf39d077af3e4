// Package submission hands completed booking drafts to the booking
// collaborator.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-booking-flow/internal/draft"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

var submissionTracer = otel.Tracer("booking.internal.submission")

// ErrSubmissionFailed wraps every failure to hand off a booking.
var ErrSubmissionFailed = errors.New("submission: booking submission failed")

// Request is one booking submission.
type Request struct {
	PageID     string         `json:"pageId"`
	SessionKey string         `json:"sessionKey,omitempty"`
	Booking    map[string]any `json:"booking"`
}

// Receipt acknowledges an accepted submission.
type Receipt struct {
	BookingID string `json:"bookingId"`
	Redirect  string `json:"redirect"`
}

// Submitter hands a booking off for confirmation.
type Submitter interface {
	Submit(ctx context.Context, req Request) (Receipt, error)
}

// Merge overlays the widget's submission payload on the draft and stamps it.
// Payload keys win over draft keys; a payload that is not a JSON object is
// rejected.
func Merge(d draft.BookingDraft, payload json.RawMessage, timestamp string) (map[string]any, error) {
	base, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("submission: encode draft: %w", err)
	}
	merged := map[string]any{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("submission: encode draft: %w", err)
	}
	if len(payload) > 0 && string(payload) != "null" {
		var extra map[string]any
		if err := json.Unmarshal(payload, &extra); err != nil {
			return nil, fmt.Errorf("submission: payload must be an object: %w", err)
		}
		for k, v := range extra {
			merged[k] = v
		}
	}
	merged["timestamp"] = timestamp
	return merged, nil
}

func confirmationURL(path, bookingID string) string {
	if path == "" {
		path = "/booking-confirmation"
	}
	return path + "?" + url.Values{"id": {bookingID}}.Encode()
}

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSubmitter publishes submissions to an SQS queue.
type SQSSubmitter struct {
	client           sqsSender
	queueURL         string
	confirmationPath string
	logger           *logging.Logger
}

// NewSQSSubmitter creates a submitter around an SQS client.
func NewSQSSubmitter(client *sqs.Client, queueURL, confirmationPath string, logger *logging.Logger) *SQSSubmitter {
	if client == nil {
		panic("submission: SQS client cannot be nil")
	}
	return newSQSSubmitter(client, queueURL, confirmationPath, logger)
}

func newSQSSubmitter(client sqsSender, queueURL, confirmationPath string, logger *logging.Logger) *SQSSubmitter {
	if queueURL == "" {
		panic("submission: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSSubmitter{
		client:           client,
		queueURL:         queueURL,
		confirmationPath: confirmationPath,
		logger:           logger,
	}
}

func (s *SQSSubmitter) Submit(ctx context.Context, req Request) (Receipt, error) {
	ctx, span := submissionTracer.Start(ctx, "submission.publish")
	defer span.End()

	bookingID := uuid.New().String()
	span.SetAttributes(attribute.String("booking.id", bookingID), attribute.String("booking.page_id", req.PageID))

	body, err := json.Marshal(struct {
		BookingID string `json:"bookingId"`
		Request
	}{BookingID: bookingID, Request: req})
	if err != nil {
		span.RecordError(err)
		return Receipt{}, fmt.Errorf("%w: encode: %v", ErrSubmissionFailed, err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"bookingId": {DataType: aws.String("String"), StringValue: aws.String(bookingID)},
		},
	})
	if err != nil {
		span.RecordError(err)
		return Receipt{}, fmt.Errorf("%w: failed to send SQS message: %v", ErrSubmissionFailed, err)
	}

	s.logger.Info("submission: booking queued", "booking_id", bookingID, "page_id", req.PageID)
	return Receipt{BookingID: bookingID, Redirect: confirmationURL(s.confirmationPath, bookingID)}, nil
}

// LogSubmitter accepts every submission and only logs it. Booking IDs are
// provisional ("temp-" plus the Unix milliseconds).
type LogSubmitter struct {
	confirmationPath string
	logger           *logging.Logger
	now              func() time.Time
}

// NewLogSubmitter creates a log-only submitter.
func NewLogSubmitter(confirmationPath string, logger *logging.Logger) *LogSubmitter {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSubmitter{confirmationPath: confirmationPath, logger: logger, now: time.Now}
}

func (s *LogSubmitter) Submit(_ context.Context, req Request) (Receipt, error) {
	bookingID := "temp-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	s.logger.Info("submission: booking accepted without queue", "booking_id", bookingID, "page_id", req.PageID, "booking", req.Booking)
	return Receipt{BookingID: bookingID, Redirect: confirmationURL(s.confirmationPath, bookingID)}, nil
}
