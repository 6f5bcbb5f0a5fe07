package usage

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Record is one key's metering snapshot. Totals stay at their zero defaults
// when the endpoint did not report an allowance; Raw is empty on success and
// carries a diagnostic tag otherwise.
type Record struct {
	Balance int64  `json:"balance"`
	Total   int64  `json:"total"`
	Used    int64  `json:"used"`
	Expires string `json:"expires"`
	Raw     string `json:"raw"`
}

// Diagnostic tags carried in Record.Raw
const (
	RawFetchError = "fetch_error"
	RawNoUsage    = "no_usage"
)

// UnknownRecord returns the all-unknown snapshot used when no data is
// available for a position.
func UnknownRecord() Record {
	return Record{Expires: "?"}
}

// encode renders the record as the base64 key=value dump stored per cache
// line. BALANCE and BALANCE_NUM carry the same value; older readers look at
// either.
func (r Record) encode() string {
	dump := fmt.Sprintf("BALANCE=%d\nBALANCE_NUM=%d\nTOTAL=%d\nUSED=%d\nEXPIRES=%s\nRAW=%s",
		r.Balance, r.Balance, r.Total, r.Used, r.Expires, r.Raw)
	return base64.StdEncoding.EncodeToString([]byte(dump))
}

// decodeRecord parses a base64 key=value dump back into a Record
func decodeRecord(encoded string) (Record, bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Record{}, false
	}

	rec := UnknownRecord()
	seenBalance := false
	for _, line := range strings.Split(string(raw), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "BALANCE_NUM":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				rec.Balance = n
				seenBalance = true
			}
		case "BALANCE":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil && !seenBalance {
				rec.Balance = n
			}
		case "TOTAL":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				rec.Total = n
			}
		case "USED":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				rec.Used = n
			}
		case "EXPIRES":
			rec.Expires = value
		case "RAW":
			rec.Raw = value
		}
	}
	return rec, true
}
