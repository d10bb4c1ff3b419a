package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/wdstore/internal/models"
)

// SiteInfo fills the site_name/site_url payload keys on every event.
type SiteInfo struct {
	Name string
	URL  string
}

// OrderService owns order persistence and the canonical status
// transition. Every mutation emits on the bus; the paid transition
// additionally notifies the admin Telegram chat.
type OrderService struct {
	db       *gorm.DB
	bus      *Bus
	site     SiteInfo
	telegram *TelegramService
}

func NewOrderService(db *gorm.DB, bus *Bus, site SiteInfo, telegram *TelegramService) *OrderService {
	return &OrderService{db: db, bus: bus, site: site, telegram: telegram}
}

// NewOrderItemInput describes one line at order creation.
type NewOrderItemInput struct {
	ProductID    uuid.UUID
	ProductTitle string
	Quantity     int
	UnitPrice    float64
	AddonPrice   float64
	Addons       AddonSelection
}

// NewOrderInput carries everything needed to persist a pending order.
type NewOrderInput struct {
	CustomerID    *uuid.UUID
	CustomerName  string
	CustomerEmail string
	Currency      string
	Totals        Totals
	Items         []NewOrderItemInput
	Meta          map[string]any
}

// Create persists the order as pending and emits order.created through
// both the direct bus path and the bridge emit.
func (s *OrderService) Create(in NewOrderInput) (*models.Order, error) {
	order := models.Order{
		Number:        generateOrderNumber(),
		CustomerID:    in.CustomerID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Status:        models.OrderStatusPending,
		Subtotal:      in.Totals.Subtotal,
		SalesTax:      in.Totals.SalesTax,
		CardFee:       in.Totals.CardFee,
		Total:         in.Totals.Grand,
		Currency:      in.Currency,
		PlacedAt:      time.Now(),
	}
	if order.Currency == "" {
		order.Currency = "USD"
	}
	if in.Meta != nil {
		if raw, err := json.Marshal(in.Meta); err == nil {
			order.Meta = raw
		}
	}

	for _, item := range in.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		pid := item.ProductID
		row := models.OrderItem{
			ProductTitle: item.ProductTitle,
			Quantity:     qty,
			UnitPrice:    item.UnitPrice,
			AddonPrice:   item.AddonPrice,
			LineTotal:    Round2((item.UnitPrice + item.AddonPrice) * float64(qty)),
		}
		if pid != uuid.Nil {
			row.ProductID = &pid
		}
		if raw, err := json.Marshal(item.Addons); err == nil {
			row.Addons = raw
		}
		order.Items = append(order.Items, row)
	}

	if err := s.db.Create(&order).Error; err != nil {
		return nil, err
	}

	payload := s.BuildPayload(&order)
	s.bus.Emit(OrderEvent{Key: EventOrderCreated, OrderID: order.ID, Payload: payload})
	s.EmitOrderEvent("created", order.ID, payload)
	s.notifyCreated(&order)

	return &order, nil
}

// Get loads one order with items.
func (s *OrderService) Get(id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateContact fills customer fields that arrived late (e.g. from the
// Elements email box or Stripe billing details).
func (s *OrderService) UpdateContact(id uuid.UUID, name, email string) error {
	updates := map[string]any{}
	if name != "" {
		updates["customer_name"] = name
	}
	if email != "" {
		updates["customer_email"] = email
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// SetTracking stores the shipment tracking id.
func (s *OrderService) SetTracking(id uuid.UUID, trackingID string) error {
	return s.db.Model(&models.Order{}).Where("id = ?", id).
		Update("tracking_id", trackingID).Error
}

// SetStatus is the canonical status transition. It no-ops on unchanged
// status, writes a single UPDATE, then fans the event out: direct bus
// emit plus the bridge emit, and an extra order.paid pair when the new
// status is paid. Hints override row values in the payload (the Stripe
// webhook passes billing-details hints here).
func (s *OrderService) SetStatus(id uuid.UUID, newStatus string, hints map[string]string) error {
	var order models.Order
	if err := s.db.First(&order, "id = ?", id).Error; err != nil {
		return err
	}

	if order.Status == newStatus {
		return nil
	}

	updates := map[string]any{"status": newStatus}
	if pid := hints["payment_id"]; pid != "" {
		updates["payment_id"] = pid
	}
	if err := s.db.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return err
	}
	order.Status = newStatus

	payload := s.BuildPayload(&order)
	for k, v := range hints {
		if v != "" {
			payload[k] = v
		}
	}
	payload["order_status"] = newStatus

	s.bus.Emit(OrderEvent{Key: EventOrderStatusChanged, OrderID: id, Payload: payload})
	s.EmitOrderEvent("status_changed", id, payload)

	if newStatus == models.OrderStatusPaid {
		s.bus.Emit(OrderEvent{Key: EventOrderPaid, OrderID: id, Payload: payload})
		s.EmitOrderEvent("paid", id, payload)
		s.notifyPaid(&order)
	}

	return nil
}

// EmitOrderEvent is the bridge path: short event kinds are normalized
// to canonical keys and the payload is backfilled from the order row.
// External callers (the poller, admin tooling) use this instead of
// emitting canonical keys directly.
func (s *OrderService) EmitOrderEvent(kind string, orderID uuid.UUID, payload map[string]string) {
	keys := map[string]string{
		"created":        EventOrderCreated,
		"paid":           EventOrderPaid,
		"status_changed": EventOrderStatusChanged,
	}
	key, ok := keys[kind]
	if !ok {
		key = kind
	}

	if payload == nil || payload["order_id"] == "" {
		var order models.Order
		if err := s.db.First(&order, "id = ?", orderID).Error; err == nil {
			base := s.BuildPayload(&order)
			for k, v := range payload {
				base[k] = v
			}
			payload = base
		}
	}
	if payload == nil {
		payload = map[string]string{}
	}
	if kind == "paid" {
		payload["order_status"] = models.OrderStatusPaid
	}

	s.bus.Emit(OrderEvent{Key: key, OrderID: orderID, Payload: payload})
}

// BuildPayload produces the canonical placeholder map for an order row.
func (s *OrderService) BuildPayload(order *models.Order) map[string]string {
	return map[string]string{
		"order_id":       order.ID.String(),
		"order_number":   order.Number,
		"order_status":   order.Status,
		"order_total":    FormatAmount(order.Total),
		"customer_email": order.CustomerEmail,
		"customer_name":  order.CustomerName,
		"tracking_id":    order.TrackingID,
		"site_name":      s.site.Name,
		"site_url":       s.site.URL,
	}
}

func (s *OrderService) notifyCreated(order *models.Order) {
	if s.telegram == nil {
		return
	}
	go func(o models.Order) {
		if err := s.telegram.NotifyNewOrder(buildOrderNotification(o)); err != nil {
			log.Printf("[Order] Telegram notification failed for order %s: %v", o.Number, err)
		}
	}(*order)
}

func buildOrderNotification(o models.Order) OrderNotification {
	note := OrderNotification{
		OrderNumber:   o.Number,
		TotalAmount:   o.Total,
		Currency:      o.Currency,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Status:        o.Status,
	}
	for _, item := range o.Items {
		note.Items = append(note.Items, OrderItemNotification{
			Title:    item.ProductTitle,
			Quantity: item.Quantity,
			Price:    item.UnitPrice + item.AddonPrice,
		})
	}
	return note
}

func (s *OrderService) notifyPaid(order *models.Order) {
	if s.telegram == nil {
		return
	}
	go func(o models.Order) {
		if err := s.telegram.NotifyPaymentSuccess(PaymentSuccessNotification{
			OrderNumber: o.Number,
			PaymentID:   o.PaymentID,
			Amount:      o.Total,
			Currency:    o.Currency,
		}); err != nil {
			log.Printf("[Order] Telegram notification failed for order %s: %v", o.Number, err)
		}
	}(*order)
}

func generateOrderNumber() string {
	return fmt.Sprintf("#%d", time.Now().UnixNano()%1000000000)
}
