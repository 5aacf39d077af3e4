package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
)

// ClientTimeZoneHeader lets embedding pages report the browser's zone.
const ClientTimeZoneHeader = "X-Client-Timezone"

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientTimeZone returns the zone the client reported, unvalidated; page
// opening runs it through timezone detection.
func clientTimeZone(r *http.Request) string {
	if tz := strings.TrimSpace(r.URL.Query().Get("tz")); tz != "" {
		return tz
	}
	return strings.TrimSpace(r.Header.Get(ClientTimeZoneHeader))
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (servicectx.Record, error) {
	var rec servicectx.Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
