package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/wdstore/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// memoryCartStore is the in-memory CartStore used by cart tests.
type memoryCartStore struct {
	mu    sync.Mutex
	carts map[string][]CartLine
}

func newMemoryCartStore() *memoryCartStore {
	return &memoryCartStore{carts: make(map[string][]CartLine)}
}

func (s *memoryCartStore) Get(_ context.Context, token string) ([]CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CartLine(nil), s.carts[token]...), nil
}

func (s *memoryCartStore) Save(_ context.Context, token string, lines []CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[token] = append([]CartLine(nil), lines...)
	return nil
}

func (s *memoryCartStore) Clear(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, token)
	return nil
}

// fakeMailer records sends instead of talking to SMTP.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

type sentMail struct {
	To      []string
	Subject string
	Body    string
	Headers []string
}

func (m *fakeMailer) Send(to []string, subject, htmlBody string, headers []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errSendFailed
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: htmlBody, Headers: headers})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var errSendFailed = errSentinel("send failed")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }

// eventCollector records every event delivered on a bus.
type eventCollector struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (c *eventCollector) handle(evt OrderEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *eventCollector) byKey(key string) []OrderEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []OrderEvent
	for _, evt := range c.events {
		if evt.Key == key {
			out = append(out, evt)
		}
	}
	return out
}
