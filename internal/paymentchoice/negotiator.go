// Package paymentchoice turns a deposit-or-full decision into a cart add or
// a continuation to the booking page.
package paymentchoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/medspa-booking-flow/internal/draft"
	"github.com/wolfman30/medspa-booking-flow/internal/handoff"
	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

var (
	ErrInvalidPaymentType = errors.New("paymentchoice: invalid payment type")
	ErrInvalidDestination = errors.New("paymentchoice: invalid destination")
)

// Destination is where the user asked to go after choosing.
type Destination string

const (
	DestinationCart    Destination = "cart"
	DestinationBooking Destination = "booking"
)

// Outcome kinds and fallback reasons.
const (
	OutcomeCartAdded       = "cart_added"
	OutcomeBookingRedirect = "booking_redirect"

	FallbackNoSKU     = "no_sku"
	FallbackCartError = "cart_error"
)

// CartDecision is the continue-shopping-or-view-cart choice offered after a
// successful cart add. An empty ContinueShopping means stay on the page.
type CartDecision struct {
	ContinueShopping string `json:"continueShopping"`
	ViewCartURL      string `json:"viewCartUrl"`
}

// Outcome is the result of a negotiation.
type Outcome struct {
	Kind           string              `json:"outcome"`
	Choice         draft.PaymentChoice `json:"choice"`
	RedirectURL    string              `json:"redirectUrl,omitempty"`
	FallbackReason string              `json:"fallbackReason,omitempty"`
	Cart           *CartDecision       `json:"cart,omitempty"`
	Persisted      bool                `json:"persisted"`
}

// Persister stores the choice for the next page.
type Persister interface {
	Persist(ctx context.Context, sessionKey string, choice draft.PaymentChoice) error
}

// Config holds the navigation targets and fallback SKUs.
type Config struct {
	BookingPagePath string
	CartPagePath    string
	FallbackSKUs    servicectx.ProductSKUs
}

// Negotiator resolves payment choices.
type Negotiator struct {
	persister Persister
	cart      Cart
	cfg       Config
	metrics   *metrics.FlowMetrics
	logger    *logging.Logger
}

// NewNegotiator creates a negotiator. A nil cart sends every cart request to
// the booking page.
func NewNegotiator(persister Persister, cart Cart, cfg Config, m *metrics.FlowMetrics, logger *logging.Logger) *Negotiator {
	if persister == nil {
		panic("paymentchoice: persister required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BookingPagePath == "" {
		cfg.BookingPagePath = "/booking-calendar"
	}
	if cfg.CartPagePath == "" {
		cfg.CartPagePath = "/cart"
	}
	return &Negotiator{persister: persister, cart: cart, cfg: cfg, metrics: m, logger: logger}
}

// ParseDestination validates a destination name.
func ParseDestination(s string) (Destination, error) {
	switch d := Destination(strings.ToLower(strings.TrimSpace(s))); d {
	case DestinationCart, DestinationBooking:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDestination, s)
}

// Choose builds the PaymentChoice for the draft's service, records it in the
// draft, persists it for the session and then routes it.
func (n *Negotiator) Choose(ctx context.Context, sessionKey string, store *draft.Store, skus servicectx.ProductSKUs, paymentType string, destination Destination) (Outcome, error) {
	if !draft.ValidPaymentType(paymentType) {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidPaymentType, paymentType)
	}
	if destination != DestinationCart && destination != DestinationBooking {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
	}

	svc := store.Service()
	skus = skus.Or(n.cfg.FallbackSKUs)
	choice := draft.PaymentChoice{
		Type:            paymentType,
		Amount:          svc.Price,
		ProductSKU:      skus.Full,
		ServiceSnapshot: svc,
	}
	if paymentType == draft.PaymentDeposit {
		choice.Amount = svc.Deposit
		choice.ProductSKU = skus.Deposit
	}
	store.SetPayment(choice)

	out := Outcome{Choice: choice, Persisted: true}
	if err := n.persister.Persist(ctx, sessionKey, choice); err != nil {
		out.Persisted = false
		n.logger.Error("paymentchoice: persist failed, continuing with transition parameters",
			"service_id", svc.ServiceID, "error", err)
	}

	if destination == DestinationCart {
		reason, err := n.addToCart(ctx, sessionKey, choice)
		if err == nil {
			out.Kind = OutcomeCartAdded
			out.Cart = &CartDecision{ViewCartURL: n.cfg.CartPagePath}
			n.metrics.ObservePaymentChoice(paymentType, string(destination), out.Kind)
			return out, nil
		}
		n.logger.Warn("paymentchoice: falling back to booking page",
			"service_id", svc.ServiceID, "reason", reason, "error", err)
		out.FallbackReason = reason
	}

	out.Kind = OutcomeBookingRedirect
	out.RedirectURL = handoff.RedirectURL(n.cfg.BookingPagePath, handoff.SliceFor(choice))
	n.metrics.ObservePaymentChoice(paymentType, string(destination), out.Kind)
	return out, nil
}

var errNoSKU = errors.New("paymentchoice: no product sku configured")

func (n *Negotiator) addToCart(ctx context.Context, cartID string, choice draft.PaymentChoice) (string, error) {
	if choice.ProductSKU == "" || n.cart == nil {
		return FallbackNoSKU, errNoSKU
	}
	label := "Full Payment"
	if choice.Type == draft.PaymentDeposit {
		label = "Deposit Payment"
	}
	err := n.cart.AddProducts(ctx, cartID, []LineItem{{
		ProductID: choice.ProductSKU,
		Quantity:  1,
		CustomTextFields: []CustomTextField{
			{Title: "Service", Value: choice.ServiceSnapshot.Name},
			{Title: "Payment Type", Value: label},
			{Title: "Service ID", Value: choice.ServiceSnapshot.ServiceID},
		},
	}})
	if err != nil {
		var cartErr *CartAddError
		if !errors.As(err, &cartErr) {
			err = &CartAddError{Err: err}
		}
		return FallbackCartError, err
	}
	return "", nil
}
