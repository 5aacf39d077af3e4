// Package servicectx normalizes raw service records from the catalog, CMS
// items and page handoff parameters into one canonical ServiceContext.
package servicectx

import (
	"errors"
	"time"
)

// DefaultTimeZone is used when the client does not report a usable zone.
const DefaultTimeZone = "America/Chicago"

// ErrMissingServiceContext means no candidate field produced a service id.
// Callers must abandon the flow and redirect to service selection.
var ErrMissingServiceContext = errors.New("servicectx: missing service context")

// ServiceContext is the canonical description of the service being booked.
type ServiceContext struct {
	ServiceID       string  `json:"serviceId"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationMinutes float64 `json:"durationMinutes"`
	Deposit         float64 `json:"deposit"`
	Category        string  `json:"category,omitempty"`
	TimeZone        string  `json:"timeZone"`
}

// WithTimeZone returns a copy with the timezone replaced. It is the only
// change allowed after resolution.
func (s ServiceContext) WithTimeZone(tz string) ServiceContext {
	s.TimeZone = tz
	return s
}

// Valid reports whether the context identifies a service.
func (s ServiceContext) Valid() bool {
	return s.ServiceID != ""
}

// Location returns the context's timezone, or the default zone when unset.
func (s ServiceContext) Location() *time.Location {
	return LoadLocation(s.TimeZone)
}

// ProductSKUs are the purchasable items backing a deposit or a full payment.
type ProductSKUs struct {
	Deposit string `json:"depositSku,omitempty"`
	Full    string `json:"fullSku,omitempty"`
}

// Or fills empty SKUs from fallback.
func (p ProductSKUs) Or(fallback ProductSKUs) ProductSKUs {
	if p.Deposit == "" {
		p.Deposit = fallback.Deposit
	}
	if p.Full == "" {
		p.Full = fallback.Full
	}
	return p
}

// DetectTimeZone returns candidate when it names a loadable IANA zone,
// otherwise fallback (or DefaultTimeZone when fallback is unusable too).
func DetectTimeZone(candidate, fallback string) string {
	if candidate != "" {
		if _, err := time.LoadLocation(candidate); err == nil {
			return candidate
		}
	}
	if fallback != "" {
		if _, err := time.LoadLocation(fallback); err == nil {
			return fallback
		}
	}
	return DefaultTimeZone
}

// LoadLocation resolves tz, falling back to the default zone and then UTC.
func LoadLocation(tz string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(DefaultTimeZone); err == nil {
		return loc
	}
	return time.UTC
}
