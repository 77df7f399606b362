package internaldefs

import (
	authcore "github.com/loopwire/authcore"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter in engine order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricFederatedLoginSuccess, Name: "authcore_federated_login_success_total", Help: "Successful federated login attempts."},
	{ID: authcore.MetricFederatedLoginFailure, Name: "authcore_federated_login_failure_total", Help: "Failed federated login attempts."},
	{ID: authcore.MetricResolveCacheHit, Name: "authcore_resolve_cache_hit_total", Help: "Token resolutions served from the resolution cache."},
	{ID: authcore.MetricResolveCacheMiss, Name: "authcore_resolve_cache_miss_total", Help: "Token resolutions that required full verification."},
	{ID: authcore.MetricResolveSuccess, Name: "authcore_resolve_success_total", Help: "Successful local token resolutions."},
	{ID: authcore.MetricResolveFailure, Name: "authcore_resolve_failure_total", Help: "Failed local token resolutions."},
	{ID: authcore.MetricFederatedResolveSuccess, Name: "authcore_federated_resolve_success_total", Help: "Successful federated token resolutions."},
	{ID: authcore.MetricFederatedResolveFailure, Name: "authcore_federated_resolve_failure_total", Help: "Failed federated token resolutions."},
	{ID: authcore.MetricTokenRevoked, Name: "authcore_token_revoked_total", Help: "Tokens rejected because they were revoked."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Session records created on login."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeInvalidOld, Name: "authcore_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
	{ID: authcore.MetricAccountCreationSuccess, Name: "authcore_account_creation_success_total", Help: "Successful account creations."},
	{ID: authcore.MetricAccountCreationDuplicate, Name: "authcore_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
}

// HistogramDefs enumerates every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricResolveLatency, Name: "authcore_resolve_latency_seconds", Help: "Token resolution latency histogram."},
}

// HistogramBounds holds the upper bucket bounds in seconds, text form.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds the bucket bounds as metric-name-safe suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets widens a raw snapshot slice to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
