// Package draft holds the in-progress booking aggregate for one page.
package draft

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
)

// Payment types accepted at the negotiation boundary.
const (
	PaymentDeposit = "deposit"
	PaymentFull    = "full"
)

// ValidPaymentType reports whether t is one of the enumerated payment types.
func ValidPaymentType(t string) bool {
	return t == PaymentDeposit || t == PaymentFull
}

// AddonItem is an opaque record defined by the add-ons widget.
type AddonItem = json.RawMessage

// AddonSet is the add-ons selection reported by the add-ons widget.
type AddonSet struct {
	Items   []AddonItem `json:"items"`
	Total   float64     `json:"total"`
	Minutes float64     `json:"minutes"`
}

// PaymentChoice is the user's deposit-vs-full decision.
type PaymentChoice struct {
	Type            string                    `json:"type"`
	Amount          float64                   `json:"amount"`
	ProductSKU      string                    `json:"productSku"`
	ServiceSnapshot servicectx.ServiceContext `json:"serviceSnapshot"`
}

// BookingDraft is the accumulated booking. Values returned by Snapshot are
// copies; mutating them has no effect on the store.
type BookingDraft struct {
	Service      servicectx.ServiceContext `json:"service"`
	SelectedDate *string                   `json:"selectedDate"`
	SelectedTime *string                   `json:"selectedTime"`
	Addons       AddonSet                  `json:"addons"`
	Payment      *PaymentChoice            `json:"payment"`
	Timestamp    *string                   `json:"timestamp"`
}

// CombinedTotal is the service price plus the add-ons total.
func (d BookingDraft) CombinedTotal() float64 {
	return d.Service.Price + d.Addons.Total
}

// HasSelection reports whether a date/time pair has been selected.
func (d BookingDraft) HasSelection() bool {
	return d.SelectedDate != nil && d.SelectedTime != nil
}

// Store is the single owner of a page's BookingDraft. Every mutator is
// last-write-wins and replaces the corresponding field wholesale.
type Store struct {
	mu    sync.RWMutex
	draft BookingDraft
}

// NewStore creates a store seeded with the resolved service.
func NewStore(service servicectx.ServiceContext) *Store {
	return &Store{draft: BookingDraft{
		Service: service,
		Addons:  AddonSet{Items: []AddonItem{}},
	}}
}

// SetService replaces the service context.
func (s *Store) SetService(service servicectx.ServiceContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Service = service
}

// SetSelection records a widget-reported date/time pair.
func (s *Store) SetSelection(dateLabel, timeLabel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.SelectedDate = &dateLabel
	s.draft.SelectedTime = &timeLabel
}

// SetAddons replaces the add-ons selection. Negative totals are clamped to 0.
func (s *Store) SetAddons(items []AddonItem, total, minutes float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Addons = AddonSet{
		Items:   copyItems(items),
		Total:   nonNegative(total),
		Minutes: nonNegative(minutes),
	}
}

// SetPayment replaces the payment choice.
func (s *Store) SetPayment(choice PaymentChoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Payment = &choice
}

// Stamp records the submission time.
func (s *Store) Stamp(at time.Time) string {
	ts := at.UTC().Format(time.RFC3339Nano)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Timestamp = &ts
	return ts
}

// Snapshot returns a deep copy of the current draft.
func (s *Store) Snapshot() BookingDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.draft
	out.SelectedDate = copyString(s.draft.SelectedDate)
	out.SelectedTime = copyString(s.draft.SelectedTime)
	out.Timestamp = copyString(s.draft.Timestamp)
	out.Addons.Items = copyItems(s.draft.Addons.Items)
	if s.draft.Payment != nil {
		p := *s.draft.Payment
		out.Payment = &p
	}
	return out
}

// Service returns the current service context.
func (s *Store) Service() servicectx.ServiceContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Service
}

func copyItems(items []AddonItem) []AddonItem {
	out := make([]AddonItem, len(items))
	for i, item := range items {
		out[i] = append(AddonItem(nil), item...)
	}
	return out
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func nonNegative(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	return v
}
