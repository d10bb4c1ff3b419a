package services

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/wdstore/internal/models"
)

const (
	pollerPeriod = time.Minute
	pollerWindow = 200
)

// OrderPoller is the safety net behind the webhook and success-page
// paths: it diffs recent order statuses against the last snapshot and
// emits the events a missed signal would have produced. Duplicates are
// harmless; the emailer dedupes.
type OrderPoller struct {
	db     *gorm.DB
	orders *OrderService

	mu      sync.Mutex
	lastRun time.Time
}

func NewOrderPoller(db *gorm.DB, orders *OrderService) *OrderPoller {
	return &OrderPoller{db: db, orders: orders}
}

// Run polls on a fixed tick until the context is cancelled.
func (p *OrderPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(pollerPeriod)
	defer ticker.Stop()

	log.Println("[Poller] Order poller started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[Poller] Order poller stopped")
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

// LastRun reports when the poller last completed a pass.
func (p *OrderPoller) LastRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun
}

// Poll runs one diff pass and returns how many events it emitted.
func (p *OrderPoller) Poll() int {
	defer func() {
		p.mu.Lock()
		p.lastRun = time.Now()
		p.mu.Unlock()
	}()

	var orders []models.Order
	if err := p.db.Order("created_at desc").Limit(pollerWindow).Find(&orders).Error; err != nil {
		log.Printf("[Poller] Failed to load orders: %v", err)
		return 0
	}
	if len(orders) == 0 {
		return 0
	}

	ids := make([]any, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	var snaps []models.OrderStatusSnapshot
	if err := p.db.Where("order_id IN ?", ids).Find(&snaps).Error; err != nil {
		log.Printf("[Poller] Failed to load snapshots: %v", err)
		return 0
	}
	known := make(map[string]string, len(snaps))
	for _, s := range snaps {
		known[s.OrderID.String()] = s.Status
	}

	emitted := 0
	now := time.Now()
	for _, order := range orders {
		prev, seen := known[order.ID.String()]
		switch {
		case !seen:
			p.orders.EmitOrderEvent("created", order.ID, nil)
			emitted++
			if order.Status == models.OrderStatusPaid {
				p.orders.EmitOrderEvent("paid", order.ID, nil)
				emitted++
			}
		case prev != order.Status:
			p.orders.EmitOrderEvent("status_changed", order.ID, map[string]string{
				"previous_status": prev,
			})
			emitted++
			if order.Status == models.OrderStatusPaid {
				p.orders.EmitOrderEvent("paid", order.ID, nil)
				emitted++
			}
		default:
			continue
		}

		snap := models.OrderStatusSnapshot{
			OrderID:   order.ID,
			Status:    order.Status,
			UpdatedAt: now,
		}
		if err := p.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(&snap).Error; err != nil {
			log.Printf("[Poller] Failed to save snapshot for %s: %v", order.Number, err)
		}
	}

	if emitted > 0 {
		log.Printf("[Poller] Emitted %d catch-up events", emitted)
	}
	return emitted
}
