// Package widget carries the message protocol spoken by the embedded calendar
// and add-ons widgets and routes their messages into the booking draft.
package widget

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wolfman30/medspa-booking-flow/internal/availability"
	"github.com/wolfman30/medspa-booking-flow/internal/draft"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
)

// Message types exchanged with the widgets.
const (
	TypeReady             = "READY"
	TypeMonthChange       = "MONTH_CHANGE"
	TypeTimeSelected      = "TIME_SELECTED"
	TypeServiceData       = "SERVICE_DATA"
	TypeAvailability      = "AVAILABILITY"
	TypeAvailabilityError = "AVAILABILITY_ERROR"
	TypeAddonsUpdate      = "ADDONS_UPDATE"
	TypeAddons            = "vx:addons"
	TypeContext           = "vx:context"
	TypeBookingSubmit     = "BOOKING_SUBMIT"
	TypeBookingConfirmed  = "BOOKING_CONFIRMED"
	TypeBookingError      = "BOOKING_ERROR"
)

// Message is the envelope for every widget message. Which optional fields
// are populated depends on Type.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	TimeZone  string          `json:"timeZone,omitempty"`
	DateLabel string          `json:"dateLabel,omitempty"`
	TimeLabel string          `json:"timeLabel,omitempty"`
}

// Decode parses one inbound frame. Frames without a type are rejected.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("widget: decode message: %w", err)
	}
	msg.Type = strings.TrimSpace(msg.Type)
	if msg.Type == "" {
		return Message{}, fmt.Errorf("widget: decode message: missing type")
	}
	return msg, nil
}

type serviceData struct {
	ServiceID       string  `json:"serviceId"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationMinutes float64 `json:"durationMinutes"`
	Deposit         float64 `json:"deposit"`
	TimeZone        string  `json:"timeZone"`
}

// ServiceData builds the SERVICE_DATA message for svc.
func ServiceData(svc servicectx.ServiceContext) Message {
	return Message{Type: TypeServiceData, Data: mustJSON(serviceData{
		ServiceID:       svc.ServiceID,
		Name:            svc.Name,
		Price:           svc.Price,
		DurationMinutes: svc.DurationMinutes,
		Deposit:         svc.Deposit,
		TimeZone:        svc.TimeZone,
	})}
}

// Availability builds the AVAILABILITY message.
func Availability(days []availability.Day, timeZone string) Message {
	if days == nil {
		days = []availability.Day{}
	}
	return Message{Type: TypeAvailability, Data: mustJSON(days), TimeZone: timeZone}
}

// AvailabilityError builds the AVAILABILITY_ERROR message.
func AvailabilityError(message, timeZone string) Message {
	return Message{Type: TypeAvailabilityError, Message: message, TimeZone: timeZone}
}

type addonsUpdate struct {
	Items   []draft.AddonItem `json:"addonsItems"`
	Total   float64           `json:"addonsTotal"`
	Minutes float64           `json:"addonsMinutes"`
}

// AddonsUpdate builds the normalized ADDONS_UPDATE sent to the calendar.
func AddonsUpdate(set draft.AddonSet) Message {
	items := set.Items
	if items == nil {
		items = []draft.AddonItem{}
	}
	return Message{Type: TypeAddonsUpdate, Payload: mustJSON(addonsUpdate{
		Items:   items,
		Total:   set.Total,
		Minutes: set.Minutes,
	})}
}

type selectionContext struct {
	ServiceName string `json:"serviceName"`
	DateLabel   string `json:"dateLabel"`
	TimeLabel   string `json:"timeLabel"`
}

// SelectionContext builds the vx:context message sent to the add-ons widget.
func SelectionContext(serviceName, dateLabel, timeLabel string) Message {
	return Message{Type: TypeContext, Payload: mustJSON(selectionContext{
		ServiceName: serviceName,
		DateLabel:   dateLabel,
		TimeLabel:   timeLabel,
	})}
}

// BookingConfirmed tells the add-ons widget the submission was accepted.
func BookingConfirmed(bookingID, redirect string) Message {
	return Message{Type: TypeBookingConfirmed, Payload: mustJSON(map[string]string{
		"bookingId": bookingID,
		"redirect":  redirect,
	})}
}

// BookingError tells the add-ons widget the submission failed.
func BookingError(message string) Message {
	return Message{Type: TypeBookingError, Message: message}
}

// Calendar years a MONTH_CHANGE may land on once its month is normalized.
const (
	minCalendarYear = 1
	maxCalendarYear = 9999
)

// MonthChange extracts the (year, zero-based month) pair from a MONTH_CHANGE
// payload. Both values must be finite numbers or numeric strings, and the
// month they name must fall within calendar years 1 to 9999.
func MonthChange(msg Message) (year, month int, ok bool) {
	var payload struct {
		Year  any `json:"year"`
		Month any `json:"month"`
	}
	if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &payload) != nil {
		return 0, 0, false
	}
	y, okY := finite(payload.Year)
	m, okM := finite(payload.Month)
	if !okY || !okM {
		return 0, 0, false
	}
	anchorYear := y + math.Floor(m/12)
	if anchorYear < minCalendarYear || anchorYear > maxCalendarYear {
		return 0, 0, false
	}
	return int(y), int(m), true
}

// SelectionLabels returns the date and time labels of a TIME_SELECTED
// message, read from the top level and falling back to the payload.
func SelectionLabels(msg Message) (dateLabel, timeLabel string) {
	dateLabel, timeLabel = msg.DateLabel, msg.TimeLabel
	if (dateLabel != "" && timeLabel != "") || len(msg.Payload) == 0 {
		return dateLabel, timeLabel
	}
	var payload struct {
		DateLabel string `json:"dateLabel"`
		TimeLabel string `json:"timeLabel"`
	}
	if json.Unmarshal(msg.Payload, &payload) != nil {
		return dateLabel, timeLabel
	}
	if dateLabel == "" {
		dateLabel = payload.DateLabel
	}
	if timeLabel == "" {
		timeLabel = payload.TimeLabel
	}
	return dateLabel, timeLabel
}

// NormalizeAddons maps either accepted add-ons shape onto an AddonSet.
// vx:addons uses total/minutes, ADDONS_UPDATE uses addonsTotal/addonsMinutes;
// items come from items or addonsItems. Anything malformed contributes zero.
func NormalizeAddons(msg Message) draft.AddonSet {
	set := draft.AddonSet{Items: []draft.AddonItem{}}
	var payload map[string]json.RawMessage
	if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &payload) != nil {
		return set
	}

	totalKey, minutesKey := "addonsTotal", "addonsMinutes"
	if msg.Type == TypeAddons {
		totalKey, minutesKey = "total", "minutes"
	}
	set.Total = rawNumber(payload[totalKey])
	set.Minutes = rawNumber(payload[minutesKey])

	for _, key := range []string{"items", "addonsItems"} {
		var items []draft.AddonItem
		if raw, ok := payload[key]; ok && json.Unmarshal(raw, &items) == nil && len(items) > 0 {
			set.Items = items
			break
		}
	}
	return set
}

func rawNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return 0
	}
	return servicectx.NumberOrZero(v)
}

func finite(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return math.Trunc(f), true
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("widget: encode %T: %v", v, err))
	}
	return b
}
