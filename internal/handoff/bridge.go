// Package handoff carries the booking draft across the navigation from the
// service page to the booking page, through URL parameters and a persisted
// payment choice record.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/wolfman30/medspa-booking-flow/internal/draft"
	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

// Transition parameter names.
const (
	ParamServiceID     = "serviceId"
	ParamService       = "service"
	ParamPrice         = "price"
	ParamDuration      = "duration"
	ParamDeposit       = "deposit"
	ParamPaymentType   = "paymentType"
	ParamPaymentAmount = "paymentAmount"
)

// ChoiceStatus tags the outcome of reading the persisted payment choice.
type ChoiceStatus int

const (
	ChoiceAbsent ChoiceStatus = iota
	ChoiceDecoded
	ChoiceMalformed
)

func (s ChoiceStatus) String() string {
	switch s {
	case ChoiceDecoded:
		return "decoded"
	case ChoiceMalformed:
		return "malformed"
	default:
		return "absent"
	}
}

// ChoiceResult is a decoded persisted record. Choice is meaningful only when
// Status is ChoiceDecoded; Err explains a ChoiceMalformed result.
type ChoiceResult struct {
	Status ChoiceStatus
	Choice draft.PaymentChoice
	Err    error
}

// Value returns the choice when one was decoded.
func (r ChoiceResult) Value() (draft.PaymentChoice, bool) {
	return r.Choice, r.Status == ChoiceDecoded
}

// DecodeChoice parses a persisted record. An empty record is absent; invalid
// JSON or an unknown payment type is malformed.
func DecodeChoice(raw []byte) ChoiceResult {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return ChoiceResult{Status: ChoiceAbsent}
	}
	var choice draft.PaymentChoice
	if err := json.Unmarshal(raw, &choice); err != nil {
		return ChoiceResult{Status: ChoiceMalformed, Err: fmt.Errorf("handoff: parse payment choice: %w", err)}
	}
	if !draft.ValidPaymentType(choice.Type) {
		return ChoiceResult{Status: ChoiceMalformed, Err: fmt.Errorf("handoff: parse payment choice: unknown type %q", choice.Type)}
	}
	return ChoiceResult{Status: ChoiceDecoded, Choice: choice}
}

// Slice is the part of the draft that crosses the page boundary.
type Slice struct {
	Service       servicectx.ServiceContext
	PaymentType   string
	PaymentAmount float64
}

// SliceFor builds the slice for a payment choice.
func SliceFor(choice draft.PaymentChoice) Slice {
	return Slice{
		Service:       choice.ServiceSnapshot,
		PaymentType:   choice.Type,
		PaymentAmount: choice.Amount,
	}
}

// Encode flattens s into transition parameters.
func Encode(s Slice) url.Values {
	v := url.Values{}
	v.Set(ParamServiceID, s.Service.ServiceID)
	v.Set(ParamService, s.Service.Name)
	v.Set(ParamPrice, formatNumber(s.Service.Price))
	v.Set(ParamDuration, formatNumber(s.Service.DurationMinutes))
	v.Set(ParamDeposit, formatNumber(s.Service.Deposit))
	v.Set(ParamPaymentType, s.PaymentType)
	v.Set(ParamPaymentAmount, formatNumber(s.PaymentAmount))
	return v
}

// RedirectURL appends the encoded slice to path.
func RedirectURL(path string, s Slice) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + Encode(s).Encode()
}

// Handoff is what the booking page reconstructs on load.
type Handoff struct {
	Service       servicectx.ServiceContext
	PaymentType   string
	PaymentAmount float64
	Choice        *draft.PaymentChoice
}

// RemainingBalance is what is left to pay at the appointment after a
// deposit. Full payments leave nothing.
func (h Handoff) RemainingBalance() float64 {
	if h.PaymentType != draft.PaymentDeposit {
		return 0
	}
	rem := h.Service.Price - h.PaymentAmount
	if rem < 0 {
		return 0
	}
	return math.Round(rem*100) / 100
}

// Decode rebuilds the handoff from transition parameters and the persisted
// choice. It fails with servicectx.ErrMissingServiceContext when the
// parameters carry no service id. A decoded choice overrides the payment
// fields of the parameters.
func Decode(params url.Values, choice ChoiceResult, timeZone string) (Handoff, error) {
	svc, err := servicectx.HandoffStrategy().Resolve(servicectx.RecordFromValues(params), timeZone)
	if err != nil {
		return Handoff{}, fmt.Errorf("handoff: decode: %w", err)
	}

	h := Handoff{
		Service:       svc,
		PaymentType:   strings.TrimSpace(params.Get(ParamPaymentType)),
		PaymentAmount: parseNumber(params.Get(ParamPaymentAmount)),
	}
	if !draft.ValidPaymentType(h.PaymentType) {
		h.PaymentType = draft.PaymentFull
	}
	if c, ok := choice.Value(); ok {
		h.Choice = &c
		h.PaymentType = c.Type
		h.PaymentAmount = c.Amount
	}
	return h, nil
}

// Bridge persists and restores the payment choice for a browsing session.
type Bridge struct {
	store   RecordStore
	metrics *metrics.FlowMetrics
	logger  *logging.Logger
}

// NewBridge creates a bridge over store.
func NewBridge(store RecordStore, m *metrics.FlowMetrics, logger *logging.Logger) *Bridge {
	if store == nil {
		panic("handoff: record store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Bridge{store: store, metrics: m, logger: logger}
}

// Persist overwrites the session's record with choice.
func (b *Bridge) Persist(ctx context.Context, sessionKey string, choice draft.PaymentChoice) error {
	if sessionKey == "" {
		return fmt.Errorf("handoff: session key required")
	}
	data, err := json.Marshal(choice)
	if err != nil {
		return fmt.Errorf("handoff: encode payment choice: %w", err)
	}
	if err := b.store.Save(ctx, sessionKey, data); err != nil {
		return fmt.Errorf("handoff: persist payment choice: %w", err)
	}
	return nil
}

// Load reads the session's record. It never fails: store errors and bad
// records are logged and reported as ChoiceMalformed.
func (b *Bridge) Load(ctx context.Context, sessionKey string) ChoiceResult {
	res := b.load(ctx, sessionKey)
	b.metrics.ObserveHandoffDecode(res.Status.String())
	if res.Status == ChoiceMalformed {
		b.logger.Warn("handoff: payment choice unavailable", "session", sessionKey, "error", res.Err)
	}
	return res
}

func (b *Bridge) load(ctx context.Context, sessionKey string) ChoiceResult {
	if sessionKey == "" {
		return ChoiceResult{Status: ChoiceAbsent}
	}
	data, ok, err := b.store.Load(ctx, sessionKey)
	if err != nil {
		return ChoiceResult{Status: ChoiceMalformed, Err: fmt.Errorf("handoff: load payment choice: %w", err)}
	}
	if !ok {
		return ChoiceResult{Status: ChoiceAbsent}
	}
	return DecodeChoice(data)
}

func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
