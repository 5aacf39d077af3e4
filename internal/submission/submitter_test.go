package submission

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-booking-flow/internal/draft"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func sampleDraft() draft.BookingDraft {
	store := draft.NewStore(servicectx.ServiceContext{ServiceID: "svc_42", Name: "Botox", Price: 100})
	store.SetSelection("Jan 5", "9:00 AM")
	return store.Snapshot()
}

func TestMerge_PayloadWins(t *testing.T) {
	merged, err := Merge(sampleDraft(), json.RawMessage(`{"selectedTime":"10:00 AM","notes":"first visit"}`), "2024-01-05T15:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, "10:00 AM", merged["selectedTime"])
	assert.Equal(t, "Jan 5", merged["selectedDate"])
	assert.Equal(t, "first visit", merged["notes"])
	assert.Equal(t, "2024-01-05T15:00:00Z", merged["timestamp"])
	service, ok := merged["service"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "svc_42", service["serviceId"])
}

func TestMerge_EmptyAndInvalidPayload(t *testing.T) {
	merged, err := Merge(sampleDraft(), nil, "ts")
	require.NoError(t, err)
	assert.Equal(t, "ts", merged["timestamp"])

	_, err = Merge(sampleDraft(), json.RawMessage(`[1,2]`), "ts")
	assert.Error(t, err)
}

func TestSQSSubmitter_Submit(t *testing.T) {
	fake := &fakeSQS{}
	s := newSQSSubmitter(fake, "https://sqs.us-east-1.amazonaws.com/123/bookings", "/booking-confirmation", logging.New("error"))

	receipt, err := s.Submit(context.Background(), Request{PageID: "page-1", Booking: map[string]any{"selectedDate": "Jan 5"}})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.BookingID)
	assert.Equal(t, "/booking-confirmation?id="+receipt.BookingID, receipt.Redirect)

	require.NotNil(t, fake.input)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/bookings", aws.ToString(fake.input.QueueUrl))
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.input.MessageBody)), &body))
	assert.Equal(t, receipt.BookingID, body["bookingId"])
	assert.Equal(t, "page-1", body["pageId"])
	assert.Equal(t, receipt.BookingID, aws.ToString(fake.input.MessageAttributes["bookingId"].StringValue))
}

func TestSQSSubmitter_Failure(t *testing.T) {
	s := newSQSSubmitter(&fakeSQS{err: errors.New("throttled")}, "q", "", nil)

	_, err := s.Submit(context.Background(), Request{PageID: "page-1"})
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Contains(t, err.Error(), "throttled")
}

func TestLogSubmitter(t *testing.T) {
	s := NewLogSubmitter("", logging.New("error"))
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }

	receipt, err := s.Submit(context.Background(), Request{PageID: "page-1"})
	require.NoError(t, err)
	assert.Equal(t, "temp-1700000000123", receipt.BookingID)
	assert.True(t, strings.HasPrefix(receipt.Redirect, "/booking-confirmation?id=temp-"))
}
