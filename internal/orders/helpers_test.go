package orders

import (
	"context"
	"sync"
	"testing"

	"genericstore/internal/db/dbtest"
	"genericstore/internal/events"
	"genericstore/internal/inventory"
	"genericstore/internal/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.envs))
	for _, e := range p.envs {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	store     *store.Store
	manager   *Manager
	fulfiller *Fulfiller
	checkout  *Checkout
	pub       *recordingPublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.New(t), opts...)
}

func newFixtureOn(t *testing.T, gdb *gorm.DB, opts ...Option) *fixture {
	t.Helper()
	s := store.New(gdb)
	pub := &recordingPublisher{}
	logger := zap.NewNop()
	opts = append([]Option{WithPublisher(pub, "orders-test")}, opts...)
	m := NewManager(s, s, logger, opts...)
	f := NewFulfiller(s, inventory.NewLedger(s, nil, logger), logger, opts...)
	return &fixture{
		db:        gdb,
		store:     s,
		manager:   m,
		fulfiller: f,
		checkout:  NewCheckout(m, f),
		pub:       pub,
	}
}

func (f *fixture) itemCount(t *testing.T, orderID uint) int {
	t.Helper()
	items, err := f.store.ListOrderItems(context.Background(), orderID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	return len(items)
}
