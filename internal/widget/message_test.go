package widget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-booking-flow/internal/availability"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
)

func TestDecode(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"TIME_SELECTED","dateLabel":"Jan 5","timeLabel":"9:00 AM"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeTimeSelected, msg.Type)
	assert.Equal(t, "Jan 5", msg.DateLabel)

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestServiceDataShape(t *testing.T) {
	msg := ServiceData(servicectx.ServiceContext{
		ServiceID: "svc_42", Name: "Botox", Price: 100, DurationMinutes: 30, Deposit: 30,
		Category: "injectables", TimeZone: "America/Chicago",
	})
	assert.Equal(t, TypeServiceData, msg.Type)
	assert.JSONEq(t, `{"serviceId":"svc_42","name":"Botox","price":100,"durationMinutes":30,"deposit":30,"timeZone":"America/Chicago"}`, string(msg.Data))
}

func TestAvailabilityMessages(t *testing.T) {
	msg := Availability(nil, "UTC")
	assert.Equal(t, TypeAvailability, msg.Type)
	assert.JSONEq(t, `[]`, string(msg.Data))
	assert.Equal(t, "UTC", msg.TimeZone)

	msg = Availability([]availability.Day{{Date: "2024-01-02", Slots: []json.RawMessage{json.RawMessage(`{"start":"09:00"}`)}}}, "UTC")
	assert.JSONEq(t, `[{"date":"2024-01-02","slots":[{"start":"09:00"}]}]`, string(msg.Data))

	errMsg := AvailabilityError("calendar offline", "UTC")
	out, err := json.Marshal(errMsg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"AVAILABILITY_ERROR","message":"calendar offline","timeZone":"UTC"}`, string(out))
}

func TestMonthChange(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		year    int
		month   int
		ok      bool
	}{
		{"numbers", `{"year":2024,"month":2}`, 2024, 2, true},
		{"numeric strings", `{"year":"2024","month":"0"}`, 2024, 0, true},
		{"missing month", `{"year":2024}`, 0, 0, false},
		{"garbage", `{"year":"soon","month":1}`, 0, 0, false},
		{"not an object", `[1,2]`, 0, 0, false},
		{"negative month rolls back", `{"year":2024,"month":-1}`, 2024, -1, true},
		{"huge year", `{"year":1e300,"month":0}`, 0, 0, false},
		{"huge month", `{"year":2024,"month":1e18}`, 0, 0, false},
		{"year zero", `{"year":0,"month":5}`, 0, 0, false},
		{"month past last year", `{"year":9999,"month":12}`, 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			y, m, ok := MonthChange(Message{Type: TypeMonthChange, Payload: json.RawMessage(tc.payload)})
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.year, y)
			assert.Equal(t, tc.month, m)
		})
	}

	_, _, ok := MonthChange(Message{Type: TypeMonthChange})
	assert.False(t, ok)
}

func TestSelectionLabels(t *testing.T) {
	d, tm := SelectionLabels(Message{DateLabel: "Jan 5", TimeLabel: "9:00 AM"})
	assert.Equal(t, "Jan 5", d)
	assert.Equal(t, "9:00 AM", tm)

	d, tm = SelectionLabels(Message{Payload: json.RawMessage(`{"dateLabel":"Feb 1","timeLabel":"1:00 PM"}`)})
	assert.Equal(t, "Feb 1", d)
	assert.Equal(t, "1:00 PM", tm)
}

func TestNormalizeAddons(t *testing.T) {
	set := NormalizeAddons(Message{Type: TypeAddons, Payload: json.RawMessage(`{"total":25,"minutes":15,"items":[{"id":"a"}]}`)})
	assert.Equal(t, 25.0, set.Total)
	assert.Equal(t, 15.0, set.Minutes)
	require.Len(t, set.Items, 1)
	assert.JSONEq(t, `{"id":"a"}`, string(set.Items[0]))

	set = NormalizeAddons(Message{Type: TypeAddonsUpdate, Payload: json.RawMessage(`{"addonsTotal":"40","addonsMinutes":10,"addonsItems":[{"id":"b"},{"id":"c"}]}`)})
	assert.Equal(t, 40.0, set.Total)
	assert.Equal(t, 10.0, set.Minutes)
	assert.Len(t, set.Items, 2)

	// Field names of the other shape are not read.
	set = NormalizeAddons(Message{Type: TypeAddonsUpdate, Payload: json.RawMessage(`{"total":25}`)})
	assert.Equal(t, 0.0, set.Total)

	set = NormalizeAddons(Message{Type: TypeAddons, Payload: json.RawMessage(`{"total":"lots","minutes":-5,"items":"nope"}`)})
	assert.Equal(t, 0.0, set.Total)
	assert.Equal(t, 0.0, set.Minutes)
	assert.NotNil(t, set.Items)
	assert.Empty(t, set.Items)

	set = NormalizeAddons(Message{Type: TypeAddons})
	assert.Equal(t, 0.0, set.Total)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("calendar")
	require.NoError(t, err)
	assert.Equal(t, KindCalendar, k)

	_, err = ParseKind("sidebar")
	assert.Error(t, err)
}
