package flows

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Shared fakes and sentinels for the flow tests.
var (
	errNotReady     = errors.New("not ready")
	errInvalidCreds = errors.New("invalid credentials")
	errNotVerified  = errors.New("account not verified")
	errDisabled     = errors.New("account disabled")
	errInvalidToken = errors.New("invalid token")
	errRevoked      = errors.New("token revoked")
	errNoUser       = errors.New("user not found")
	errRevCheck     = errors.New("revocation check failed")
	errWrongPass    = errors.New("wrong password")
	errChangeFail   = errors.New("password change failed")
	errDuplicate    = errors.New("duplicate user")
	errValidation   = errors.New("validation")
	errStore        = errors.New("store blew up")
)

type metricRecorder struct {
	mu     sync.Mutex
	counts map[int]int
}

func newMetricRecorder() *metricRecorder {
	return &metricRecorder{counts: make(map[int]int)}
}

func (m *metricRecorder) inc(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id]++
}

func (m *metricRecorder) count(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[id]
}

type auditRecord struct {
	Event     string
	Success   bool
	SubjectID string
	OrgID     string
	Err       error
	Meta      map[string]string
}

type auditRecorder struct {
	mu      sync.Mutex
	records []auditRecord
}

func (a *auditRecorder) emit(_ context.Context, event string, success bool, subjectID, orgID string, err error, metaFn func() map[string]string) {
	var meta map[string]string
	if metaFn != nil {
		meta = metaFn()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditRecord{
		Event:     event,
		Success:   success,
		SubjectID: subjectID,
		OrgID:     orgID,
		Err:       err,
		Meta:      meta,
	})
}

func (a *auditRecorder) last() auditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.records) == 0 {
		return auditRecord{}
	}
	return a.records[len(a.records)-1]
}

func activeRecord() *CredentialRecord {
	return &CredentialRecord{
		SubjectID:    "user-1",
		Username:     "dana",
		Email:        "dana@example.test",
		OrgID:        "acme",
		PasswordHash: "stored-hash",
		Salt:         []byte("0123456789abcdef"),
		Algorithm:    "argon2id",
		Active:       true,
		RegisteredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
