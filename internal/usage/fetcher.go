// Package usage queries the remote metering endpoint for per-key quota
// snapshots and maintains the on-disk usage cache that keeps those snapshots
// positionally aligned with the key store.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"droidkey/observability"
)

// breakerService names the usage endpoint in breaker logs and metrics
const breakerService = "usage-endpoint"

// fetchResult is the raw outcome of one request through the breaker
type fetchResult struct {
	status int
	body   []byte
}

// Fetcher performs best-effort, time-bounded lookups of one key's usage.
// Fetch never returns an error: every failure mode degrades to a diagnostic
// Record instead.
type Fetcher struct {
	endpoint  string
	userAgent string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[fetchResult]
}

// NewFetcher creates a Fetcher against endpoint with a hard per-request
// timeout. The remote schema is not under our control, so parsing tolerates
// several alternative response shapes rather than failing a refresh over one
// key.
func NewFetcher(endpoint, userAgent string, timeout time.Duration) *Fetcher {
	settings := gobreaker.Settings{
		Name:        breakerService,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			observability.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())

			metrics := observability.GetMetrics()
			metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}

	return &Fetcher{
		endpoint:  endpoint,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		breaker:   gobreaker.NewCircuitBreaker[fetchResult](settings),
	}
}

// Fetch looks up usage for one key. Network failures, timeouts and an open
// breaker yield a fetch_error record; a non-2xx response yields an
// http_<status> record; a body without usage data yields no_usage.
func (f *Fetcher) Fetch(ctx context.Context, secret string) Record {
	start := time.Now()
	rec := UnknownRecord()

	res, err := f.breaker.Execute(func() (fetchResult, error) {
		return f.request(ctx, secret)
	})
	if err != nil {
		rec.Raw = RawFetchError
		rec.Expires = "Error"
		observability.GetMetrics().RecordUsageFetch(RawFetchError, time.Since(start))
		observability.Debug("usage fetch failed", "error", err)
		return rec
	}

	if res.status < 200 || res.status >= 300 {
		rec.Raw = fmt.Sprintf("http_%d", res.status)
		rec.Expires = "Invalid key"
		observability.GetMetrics().RecordUsageFetch("http_error", time.Since(start))
		return rec
	}

	rec = parseUsageBody(res.body)
	outcome := "success"
	if rec.Raw != "" {
		outcome = rec.Raw
	}
	observability.GetMetrics().RecordUsageFetch(outcome, time.Since(start))
	return rec
}

// request performs the single outbound call inside the breaker
func (f *Fetcher) request(ctx context.Context, secret string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return fetchResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fetchResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fetchResult{}, err
	}
	return fetchResult{status: resp.StatusCode, body: body}, nil
}

// usageSection is one quota bucket within the usage block. Every field is a
// pointer: absent and zero are distinct upstream.
type usageSection struct {
	TotalAllowance     *float64 `json:"totalAllowance"`
	BasicAllowance     *float64 `json:"basicAllowance"`
	Allowance          *float64 `json:"allowance"`
	OrgTotalTokensUsed *float64 `json:"orgTotalTokensUsed"`
	Used               *float64 `json:"used"`
	TokensUsed         *float64 `json:"tokensUsed"`
	OrgOverageUsed     *float64 `json:"orgOverageUsed"`
}

// blank reports whether the section decoded as an empty object. A section
// that is present but carries no fields must not shadow a populated one
// later in the priority order.
func (s *usageSection) blank() bool {
	return s.TotalAllowance == nil && s.BasicAllowance == nil && s.Allowance == nil &&
		s.OrgTotalTokensUsed == nil && s.Used == nil && s.TokensUsed == nil &&
		s.OrgOverageUsed == nil
}

// usageBlock holds the alternative section names and expiry aliases the
// endpoint is known to emit
type usageBlock struct {
	Standard  *usageSection `json:"standard"`
	Premium   *usageSection `json:"premium"`
	Total     *usageSection `json:"total"`
	Main      *usageSection `json:"main"`
	EndDate   any           `json:"endDate"`
	ExpireAt  any           `json:"expire_at"`
	ExpiresAt any           `json:"expires_at"`
}

func (u *usageBlock) empty() bool {
	return u.Standard == nil && u.Premium == nil && u.Total == nil && u.Main == nil &&
		expiryValue(u.EndDate) == "" && expiryValue(u.ExpireAt) == "" && expiryValue(u.ExpiresAt) == ""
}

type usageResponse struct {
	Usage *usageBlock `json:"usage"`
}

// parseUsageBody extracts a Record from a 2xx response body. Unknown shapes
// degrade to defaults; they never fail.
func parseUsageBody(body []byte) Record {
	rec := UnknownRecord()

	var resp usageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		rec.Raw = RawFetchError
		rec.Expires = "Error"
		return rec
	}
	if resp.Usage == nil || resp.Usage.empty() {
		rec.Raw = RawNoUsage
		return rec
	}

	// First populated section wins, in fixed priority order; an empty
	// object does not count as populated
	var section *usageSection
	for _, s := range []*usageSection{resp.Usage.Standard, resp.Usage.Premium, resp.Usage.Total, resp.Usage.Main} {
		if s != nil && !s.blank() {
			section = s
			break
		}
	}

	if section != nil {
		total := firstAlias(section.TotalAllowance, section.BasicAllowance, section.Allowance)
		used := valueOrZero(firstAlias(section.OrgTotalTokensUsed, section.Used, section.TokensUsed))
		used += valueOrZero(section.OrgOverageUsed)
		if total != nil {
			rec.Total = int64(*total)
			rec.Used = int64(used)
			rec.Balance = rec.Total - rec.Used
		}
	}

	if exp := firstExpiry(resp.Usage.EndDate, resp.Usage.ExpireAt, resp.Usage.ExpiresAt); exp != "" {
		rec.Expires = exp
	}

	return rec
}

// firstAlias returns the first alias that is present and non-zero, falling
// back to the last alias's value. An explicit zero in the final position is
// data; a chain of absences is not.
func firstAlias(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil && *v != 0 {
			return v
		}
	}
	return values[len(values)-1]
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// expiryValue normalizes a raw expiry field to a non-empty string when the
// field carries data
func expiryValue(v any) string {
	switch t := v.(type) {
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatInt(int64(t), 10)
	case string:
		return t
	default:
		return ""
	}
}

// firstExpiry picks the first populated expiry alias and formats it. Purely
// numeric values are epoch milliseconds rendered as a UTC date; anything
// else passes through verbatim.
func firstExpiry(values ...any) string {
	for _, v := range values {
		raw := expiryValue(v)
		if raw == "" {
			continue
		}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms >= 0 {
			return time.UnixMilli(ms).UTC().Format("2006-01-02")
		}
		return raw
	}
	return ""
}

// stateToInt converts a circuit breaker state to an integer for metrics.
// 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
