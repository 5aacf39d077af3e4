package mainconfig

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/medspa-booking-flow/internal/config"
)

func TestNewBookingQueueClientEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}

	client, err := NewBookingQueueClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewBookingQueueClient() error = %v", err)
	}
	opts := client.Options()
	if opts.Region != "us-east-1" {
		t.Fatalf("expected region us-east-1, got %s", opts.Region)
	}
	if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://localhost:4566" {
		t.Fatalf("expected LocalStack endpoint, got %v", opts.BaseEndpoint)
	}
}

func TestNewBookingQueueClientRegionFromQueueURL(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	cfg := &appconfig.Config{
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
		BookingQueueURL:    "https://sqs.eu-west-2.amazonaws.com/123456789012/bookings",
	}

	client, err := NewBookingQueueClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewBookingQueueClient() error = %v", err)
	}
	opts := client.Options()
	if opts.Region != "eu-west-2" {
		t.Fatalf("expected region from queue url, got %q", opts.Region)
	}
	if opts.BaseEndpoint != nil {
		t.Fatalf("expected default endpoint without override, got %s", *opts.BaseEndpoint)
	}
}

func TestQueueRegion(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://sqs.us-east-1.amazonaws.com/123456789012/bookings", "us-east-1"},
		{"http://localhost:4566/000000000000/bookings", ""},
		{"", ""},
		{"://bad", ""},
	}
	for _, tc := range cases {
		if got := QueueRegion(tc.url); got != tc.want {
			t.Fatalf("QueueRegion(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
