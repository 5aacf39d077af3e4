package draft

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
)

func testService() servicectx.ServiceContext {
	return servicectx.ServiceContext{ServiceID: "svc_42", Name: "Facial", Price: 100, Deposit: 30, TimeZone: "UTC"}
}

func TestNewStoreStartsEmpty(t *testing.T) {
	s := NewStore(testService())
	d := s.Snapshot()

	assert.Equal(t, "svc_42", d.Service.ServiceID)
	assert.Nil(t, d.SelectedDate)
	assert.Nil(t, d.SelectedTime)
	assert.Nil(t, d.Payment)
	assert.Nil(t, d.Timestamp)
	assert.NotNil(t, d.Addons.Items)
	assert.False(t, d.HasSelection())
	assert.Equal(t, 100.0, d.CombinedTotal())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(testService())
	s.SetSelection("Mar 3", "10:00 AM")
	s.SetAddons([]AddonItem{json.RawMessage(`{"id":"a1"}`)}, 25, 15)
	s.SetPayment(PaymentChoice{Type: PaymentDeposit, Amount: 30})

	snap := s.Snapshot()
	*snap.SelectedDate = "tampered"
	snap.Addons.Items[0][2] = 'X'
	snap.Payment.Amount = 999

	again := s.Snapshot()
	assert.Equal(t, "Mar 3", *again.SelectedDate)
	assert.JSONEq(t, `{"id":"a1"}`, string(again.Addons.Items[0]))
	assert.Equal(t, 30.0, again.Payment.Amount)
}

func TestMutatorsAreLastWriteWins(t *testing.T) {
	s := NewStore(testService())
	s.SetAddons([]AddonItem{json.RawMessage(`1`), json.RawMessage(`2`)}, 40, 30)
	s.SetAddons(nil, 10, 5)

	d := s.Snapshot()
	assert.Len(t, d.Addons.Items, 0)
	assert.Equal(t, 10.0, d.Addons.Total)
	assert.Equal(t, 5.0, d.Addons.Minutes)

	s.SetSelection("Mon", "9:00")
	s.SetSelection("Tue", "11:00")
	d = s.Snapshot()
	assert.Equal(t, "Tue", *d.SelectedDate)
	assert.Equal(t, "11:00", *d.SelectedTime)
	assert.True(t, d.HasSelection())
}

func TestSetAddonsClampsNegativeAndNaN(t *testing.T) {
	s := NewStore(testService())
	s.SetAddons(nil, -5, math.NaN())

	d := s.Snapshot()
	assert.Equal(t, 0.0, d.Addons.Total)
	assert.Equal(t, 0.0, d.Addons.Minutes)
	assert.Equal(t, 100.0, d.CombinedTotal())
}

func TestCombinedTotal(t *testing.T) {
	s := NewStore(testService())
	s.SetAddons(nil, 25, 0)
	assert.Equal(t, 125.0, s.Snapshot().CombinedTotal())
}

func TestStamp(t *testing.T) {
	s := NewStore(testService())
	at := time.Date(2024, 3, 1, 15, 4, 5, 0, time.FixedZone("x", -6*3600))
	ts := s.Stamp(at)

	assert.Equal(t, "2024-03-01T21:04:05Z", ts)
	require.NotNil(t, s.Snapshot().Timestamp)
	assert.Equal(t, ts, *s.Snapshot().Timestamp)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(testService())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetAddons(nil, float64(i), 1)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
}

func TestValidPaymentType(t *testing.T) {
	assert.True(t, ValidPaymentType("deposit"))
	assert.True(t, ValidPaymentType("full"))
	assert.False(t, ValidPaymentType("Deposit"))
	assert.False(t, ValidPaymentType(""))
}
