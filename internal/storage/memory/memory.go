// Package memory provides single-process implementations of the checkout
// lock and the vendor audit log, used when Redis or MongoDB are not
// configured.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/order"
)

var (
	_ order.Locker     = (*Locker)(nil)
	_ account.AuditLog = (*AuditLog)(nil)
)

// Locker is a process-local order.Locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]string)}
}

func (l *Locker) TryLock(_ context.Context, key string) (order.Unlock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	token := uuid.New().String()
	l.held[key] = token

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == token {
			delete(l.held, key)
		}
		return nil
	}, true, nil
}

// AuditLog keeps audit entries in memory. Entries are lost on restart.
type AuditLog struct {
	mu      sync.RWMutex
	entries []account.AuditEntry
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (a *AuditLog) Record(_ context.Context, e *account.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	a.entries = append(a.entries, *e)
	return nil
}

func (a *AuditLog) List(_ context.Context, vendorID string, limit int64) ([]account.AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []account.AuditEntry
	for _, e := range slices.Backward(a.entries) {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		if e.VendorID == vendorID {
			out = append(out, e)
		}
	}
	return out, nil
}
