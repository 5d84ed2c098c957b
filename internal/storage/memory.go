package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	// txMu serialises WithTx callers; mu guards the data below.
	txMu sync.Mutex
	mu   sync.RWMutex
	data memoryData
}

type memoryData struct {
	customers   map[string]Customer
	usage       []UsageRecord
	bills       []Bill
	tariffs     []Tariff
	payments    []Payment
	predictions map[predictionKey]Prediction
	users       map[string]User
	sessions    map[string]Session
	rules       []CasbinRule

	nextUsageID   uint
	nextBillID    uint
	nextTierID    uint
	nextPaymentID uint
	nextRuleID    uint
}

type predictionKey struct {
	customerID  string
	year, month int
}

func newMemoryData() memoryData {
	return memoryData{
		customers:   make(map[string]Customer),
		predictions: make(map[predictionKey]Prediction),
		users:       make(map[string]User),
		sessions:    make(map[string]Session),
	}
}

func (d memoryData) clone() memoryData {
	out := d
	out.customers = make(map[string]Customer, len(d.customers))
	for k, v := range d.customers {
		out.customers[k] = v
	}
	out.usage = append([]UsageRecord(nil), d.usage...)
	out.bills = append([]Bill(nil), d.bills...)
	out.tariffs = append([]Tariff(nil), d.tariffs...)
	out.payments = append([]Payment(nil), d.payments...)
	out.predictions = make(map[predictionKey]Prediction, len(d.predictions))
	for k, v := range d.predictions {
		out.predictions[k] = v
	}
	out.users = make(map[string]User, len(d.users))
	for k, v := range d.users {
		out.users[k] = v
	}
	out.sessions = make(map[string]Session, len(d.sessions))
	for k, v := range d.sessions {
		out.sessions[k] = v
	}
	out.rules = append([]CasbinRule(nil), d.rules...)
	return out
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{data: newMemoryData()}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Customers

func (m *MemoryStorage) CreateCustomer(ctx context.Context, c Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.customers[c.NationalID]; ok {
		return fmt.Errorf("customer %s: %w", c.NationalID, apperr.ErrAlreadyExists)
	}
	if c.Status == "" {
		c.Status = "active"
	}
	m.data.customers[c.NationalID] = c
	return nil
}

func (m *MemoryStorage) GetCustomer(ctx context.Context, nationalID string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.data.customers[nationalID]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (m *MemoryStorage) ListCustomers(ctx context.Context) ([]Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Customer, 0, len(m.data.customers))
	for _, c := range m.data.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NationalID < out[j].NationalID })
	return out, nil
}

// Usage

func (m *MemoryStorage) CreateUsageRecord(ctx context.Context, rec *UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.customers[rec.CustomerID]; !ok {
		return fmt.Errorf("usage for customer %s: %w", rec.CustomerID, apperr.ErrNotFound)
	}
	m.data.nextUsageID++
	rec.ID = m.data.nextUsageID
	m.data.usage = append(m.data.usage, *rec)
	return nil
}

func (m *MemoryStorage) ListUsageHistory(ctx context.Context, customerID string) ([]UsageHistoryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []UsageHistoryRow
	for _, u := range m.data.usage {
		if customerID != "" && u.CustomerID != customerID {
			continue
		}
		c, ok := m.data.customers[u.CustomerID]
		if !ok {
			continue
		}
		out = append(out, UsageHistoryRow{
			UsageID:        u.ID,
			CustomerID:     u.CustomerID,
			Month:          u.Month,
			Year:           u.Year,
			ConsumptionKWh: u.ConsumptionKWh,
			Location:       c.Location,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CustomerID != out[j].CustomerID {
			return out[i].CustomerID < out[j].CustomerID
		}
		return out[i].UsageID < out[j].UsageID
	})
	return out, nil
}

// Bills

func (m *MemoryStorage) CreateBill(ctx context.Context, b *Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.customers[b.CustomerID]; !ok {
		return fmt.Errorf("bill for customer %s: %w", b.CustomerID, apperr.ErrNotFound)
	}
	m.data.nextBillID++
	b.ID = m.data.nextBillID
	if b.CreatedDate.IsZero() {
		b.CreatedDate = time.Now().UTC()
	}
	m.data.bills = append(m.data.bills, *b)
	return nil
}

func (m *MemoryStorage) ListBills(ctx context.Context, f BillFilter) ([]Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Bill
	for _, b := range m.data.bills {
		if f.CustomerID != "" && b.CustomerID != f.CustomerID {
			continue
		}
		if f.UnpaidOnly && b.IsPaid {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Tariffs

func (m *MemoryStorage) ListTariffs(ctx context.Context) ([]Tariff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Tariff(nil), m.data.tariffs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EffectiveDate.Equal(out[j].EffectiveDate) {
			return out[i].EffectiveDate.Before(out[j].EffectiveDate)
		}
		return out[i].MinKWh < out[j].MinKWh
	})
	return out, nil
}

func (m *MemoryStorage) ReplaceTariffs(ctx context.Context, rows []Tariff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.tariffs = m.data.tariffs[:0]
	for _, t := range rows {
		m.data.nextTierID++
		t.TierID = m.data.nextTierID
		m.data.tariffs = append(m.data.tariffs, t)
	}
	return nil
}

// Payments

func (m *MemoryStorage) CreatePayment(ctx context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.nextPaymentID++
	p.ID = m.data.nextPaymentID
	m.data.payments = append(m.data.payments, *p)
	return nil
}

func (m *MemoryStorage) ListPayments(ctx context.Context, customerID string) ([]Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Payment
	for _, p := range m.data.payments {
		if customerID != "" && p.CustomerID != customerID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Predictions

func (m *MemoryStorage) UpsertPrediction(ctx context.Context, p Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.data.predictions[predictionKey{p.CustomerID, p.Year, p.Month}] = p
	return nil
}

func (m *MemoryStorage) GetPrediction(ctx context.Context, customerID string, year, month int) (*Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data.predictions[predictionKey{customerID, year, month}]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStorage) ListPredictions(ctx context.Context, customerID string) ([]Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Prediction
	for _, p := range m.data.predictions {
		if customerID != "" && p.CustomerID != customerID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CustomerID != b.CustomerID {
			return a.CustomerID < b.CustomerID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return out, nil
}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.users[u.NationalID]; ok {
		return fmt.Errorf("user %s: %w", u.NationalID, apperr.ErrAlreadyExists)
	}
	m.data.users[u.NationalID] = u
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, nationalID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.data.users[nationalID]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

// Sessions

func (m *MemoryStorage) CreateSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.sessions[s.ID] = s
	return nil
}

func (m *MemoryStorage) GetSessionByHash(ctx context.Context, hash string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.data.sessions {
		if s.TokenHash == hash {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data.sessions, id)
	return nil
}

// Casbin Rules

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CasbinRule(nil), m.data.rules...), nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.nextRuleID++
	rule.ID = m.data.nextRuleID
	m.data.rules = append(m.data.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.data.rules[:0]
	for _, r := range m.data.rules {
		r2 := r
		r2.ID = rule.ID
		if r2 == rule {
			continue
		}
		kept = append(kept, r)
	}
	m.data.rules = kept
	return nil
}

// WithTx snapshots the store, runs fn, and restores the snapshot if fn fails.
// Writes made outside WithTx while fn runs are lost on rollback.
func (m *MemoryStorage) WithTx(ctx context.Context, fn func(Storage) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.data.clone()
	m.mu.RUnlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryStorage) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = newMemoryData()
	return nil
}
