package servicectx

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Record is a raw service record as supplied by a data source.
type Record map[string]any

// RecordFromValues flattens query parameters into a Record, keeping the
// first value of each key.
func RecordFromValues(values url.Values) Record {
	rec := make(Record, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			rec[key] = vals[0]
		}
	}
	return rec
}

// Candidates lists, per logical attribute, the dotted field paths to try in
// priority order.
type Candidates struct {
	ID         []string
	Name       []string
	Price      []string
	Duration   []string
	Deposit    []string
	Category   []string
	DepositSKU []string
	FullSKU    []string
}

// Strategy is the field mapping for one kind of page.
type Strategy struct {
	Name   string
	Fields Candidates
	// DefaultName is used when no name candidate resolves.
	DefaultName string
	// DefaultDepositRatio derives the deposit from the price when no deposit
	// candidate resolves. Zero leaves the deposit at 0.
	DefaultDepositRatio float64
}

// Resolve builds a ServiceContext from raw. It is pure: raw is not modified.
func (s Strategy) Resolve(raw Record, timeZone string) (ServiceContext, error) {
	id := firstString(raw, s.Fields.ID)
	if id == "" {
		return ServiceContext{}, fmt.Errorf("%w: no id among %v (strategy %s)", ErrMissingServiceContext, s.Fields.ID, s.Name)
	}

	name := firstString(raw, s.Fields.Name)
	if name == "" {
		name = s.DefaultName
	}

	price := firstNumber(raw, s.Fields.Price)
	deposit := firstNumber(raw, s.Fields.Deposit)
	if deposit == 0 && s.DefaultDepositRatio > 0 {
		deposit = roundCents(price * s.DefaultDepositRatio)
	}

	return ServiceContext{
		ServiceID:       id,
		Name:            name,
		Price:           price,
		DurationMinutes: firstNumber(raw, s.Fields.Duration),
		Deposit:         deposit,
		Category:        firstString(raw, s.Fields.Category),
		TimeZone:        timeZone,
	}, nil
}

// SKUs reads the deposit and full-payment product references from raw.
func (s Strategy) SKUs(raw Record) ProductSKUs {
	return ProductSKUs{
		Deposit: firstString(raw, s.Fields.DepositSKU),
		Full:    firstString(raw, s.Fields.FullSKU),
	}
}

// Lookup walks a dotted path ("pricing.price", "categories.0.name") through
// nested maps and slices.
func Lookup(raw Record, path string) (any, bool) {
	var cur any = map[string]any(raw)
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case Record:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// Number coerces v into a finite, non-negative float. ok is false for
// anything that is not a number or numeric string.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// NumberOrZero applies the "parse, keep if finite, else 0" rule.
func NumberOrZero(v any) float64 {
	f, _ := Number(v)
	return f
}

// String coerces v into a non-empty trimmed string.
func String(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return "", false
		}
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case json.Number:
		return s.String(), s.String() != ""
	default:
		return "", false
	}
}

// firstNumber returns the first candidate that coerces to a positive number.
// Zero falls through so that a later, populated field wins.
func firstNumber(raw Record, paths []string) float64 {
	for _, path := range paths {
		v, ok := Lookup(raw, path)
		if !ok {
			continue
		}
		if f, ok := Number(v); ok && f > 0 {
			return f
		}
	}
	return 0
}

func firstString(raw Record, paths []string) string {
	for _, path := range paths {
		v, ok := Lookup(raw, path)
		if !ok {
			continue
		}
		if s, ok := String(v); ok {
			return s
		}
	}
	return ""
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Registry holds the strategies available to page handlers, keyed by name.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry indexes the given strategies by name.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name] = s
	}
	return r
}

// Get returns the named strategy.
func (r *Registry) Get(name string) (Strategy, bool) {
	if r == nil {
		return Strategy{}, false
	}
	s, ok := r.strategies[name]
	return s, ok
}

// Names lists registered strategy names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
