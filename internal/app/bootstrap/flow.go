package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medspa-booking-flow/internal/availability"
	appconfig "github.com/wolfman30/medspa-booking-flow/internal/config"
	"github.com/wolfman30/medspa-booking-flow/internal/flow"
	"github.com/wolfman30/medspa-booking-flow/internal/handoff"
	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/internal/paymentchoice"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/internal/submission"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

// ErrAvailabilityNotConfigured means AVAILABILITY_BASE_URL is empty.
var ErrAvailabilityNotConfigured = errors.New("bootstrap: AVAILABILITY_BASE_URL is required")

// BuildHandoffStore returns the Redis record store, or an in-process store
// when Redis is disabled or unavailable.
func BuildHandoffStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) handoff.RecordStore {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Warn("persisted payment choices kept in memory; they will not survive restarts")
		return handoff.NewMemoryStore(cfg.HandoffTTL)
	}
	return handoff.NewRedisStore(redisClient, cfg.HandoffTTL, nil)
}

// BuildSubmitter publishes to SQS when a queue is configured and logs
// submissions otherwise.
func BuildSubmitter(ctx context.Context, cfg *appconfig.Config, newClient func(context.Context, *appconfig.Config) (*sqs.Client, error), logger *logging.Logger) (submission.Submitter, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.BookingQueueURL) == "" {
		logger.Warn("BOOKING_QUEUE_URL not set; submissions are logged only")
		return submission.NewLogSubmitter(cfg.ConfirmationPagePath, logger), nil
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: booking queue client: %w", err)
	}
	return submission.NewSQSSubmitter(client, cfg.BookingQueueURL, cfg.ConfirmationPagePath, logger), nil
}

// BuildManager wires the page manager and its collaborators.
func BuildManager(cfg *appconfig.Config, store handoff.RecordStore, submitter submission.Submitter, m *metrics.FlowMetrics, logger *logging.Logger) (*flow.Manager, error) {
	if strings.TrimSpace(cfg.AvailabilityBaseURL) == "" {
		return nil, ErrAvailabilityNotConfigured
	}
	if logger == nil {
		logger = logging.Default()
	}

	fallback := servicectx.ProductSKUs{
		Deposit: cfg.DepositProductSKU,
		Full:    cfg.FullPaymentProductSKU,
	}
	var cart paymentchoice.Cart
	if strings.TrimSpace(cfg.CartBaseURL) != "" {
		cart = paymentchoice.NewHTTPCart(cfg.CartBaseURL, cfg.CartTimeout, logger)
	} else {
		logger.Info("CART_BASE_URL not set; payment choices go to the booking page")
	}

	bridge := handoff.NewBridge(store, m, logger)
	negotiator := paymentchoice.NewNegotiator(bridge, cart, paymentchoice.Config{
		BookingPagePath: cfg.BookingPagePath,
		CartPagePath:    cfg.CartPagePath,
		FallbackSKUs:    fallback,
	}, m, logger)

	return flow.NewManager(flow.Deps{
		Strategies:      servicectx.DefaultRegistry(cfg.DefaultDepositRatio),
		Backend:         availability.NewHTTPBackend(cfg.AvailabilityBaseURL, cfg.AvailabilityTimeout, logger),
		Bridge:          bridge,
		Negotiator:      negotiator,
		Submitter:       submitter,
		FallbackSKUs:    fallback,
		DefaultTimeZone: cfg.DefaultTimeZone,
		IdleTimeout:     cfg.PageIdleTimeout,
		Metrics:         m,
		Logger:          logger,
	}), nil
}
