package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/wdstore/internal/models"
)

// Cart TTL. Refreshed on every write.
const cartTTL = 72 * time.Hour

var ErrProductUnavailable = errors.New("product unavailable")

// CartLine is one entry in a session cart. Lines are identified by
// product id plus addon signature, so the same dress with a different
// back style is a separate line.
type CartLine struct {
	ProductID uuid.UUID      `json:"product_id"`
	Quantity  int            `json:"quantity"`
	Addons    AddonSelection `json:"addons"`
}

func (l CartLine) signature() string {
	return fmt.Sprintf("%s|%s|%s|%s", l.ProductID, l.Addons.Back, l.Addons.Length3, l.Addons.Train12)
}

// CartStore persists session carts keyed by the cart cookie token.
type CartStore interface {
	Get(ctx context.Context, token string) ([]CartLine, error)
	Save(ctx context.Context, token string, lines []CartLine) error
	Clear(ctx context.Context, token string) error
}

// RedisCartStore keeps carts as JSON blobs with a sliding TTL.
type RedisCartStore struct {
	rdb *redis.Client
}

func NewRedisCartStore(rdb *redis.Client) *RedisCartStore {
	return &RedisCartStore{rdb: rdb}
}

func cartKey(token string) string {
	return "wdss:cart:" + token
}

func (s *RedisCartStore) Get(ctx context.Context, token string) ([]CartLine, error) {
	raw, err := s.rdb.Get(ctx, cartKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var lines []CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *RedisCartStore) Save(ctx context.Context, token string, lines []CartLine) error {
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, cartKey(token), raw, cartTTL).Err()
}

func (s *RedisCartStore) Clear(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, cartKey(token)).Err()
}

// DBCartStore is the fallback used when Redis is not configured. Rows
// older than the cart TTL read as empty.
type DBCartStore struct {
	db *gorm.DB
}

func NewDBCartStore(db *gorm.DB) *DBCartStore {
	return &DBCartStore{db: db}
}

func (s *DBCartStore) Get(ctx context.Context, token string) ([]CartLine, error) {
	var row models.CartSession
	if err := s.db.WithContext(ctx).First(&row, "token = ?", token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	if time.Since(row.UpdatedAt) > cartTTL {
		return nil, nil
	}
	var lines []CartLine
	if err := json.Unmarshal(row.Data, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *DBCartStore) Save(ctx context.Context, token string, lines []CartLine) error {
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	row := models.CartSession{Token: token, Data: raw, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
}

func (s *DBCartStore) Clear(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&models.CartSession{}, "token = ?", token).Error
}

// CartService applies cart mutations and prices carts against the
// catalog and the configured rates.
type CartService struct {
	db       *gorm.DB
	store    CartStore
	settings *SettingsService
}

func NewCartService(db *gorm.DB, store CartStore, settings *SettingsService) *CartService {
	return &CartService{db: db, store: store, settings: settings}
}

// Add merges a line into the cart. An existing line with the same
// product and addon selection has its quantity incremented.
func (s *CartService) Add(ctx context.Context, token string, line CartLine) ([]CartLine, error) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	line.Addons = SanitizeAddons(line.Addons)

	var product models.Product
	if err := s.db.First(&product, "id = ? AND status = ?", line.ProductID, models.ProductStatusPublish).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}

	lines, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range lines {
		if lines[i].signature() == line.signature() {
			lines[i].Quantity += line.Quantity
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, line)
	}

	if err := s.store.Save(ctx, token, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// SetQuantity updates a line's quantity; zero removes the line.
func (s *CartService) SetQuantity(ctx context.Context, token string, line CartLine) ([]CartLine, error) {
	line.Addons = SanitizeAddons(line.Addons)

	lines, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	out := lines[:0]
	for _, existing := range lines {
		if existing.signature() == line.signature() {
			if line.Quantity > 0 {
				existing.Quantity = line.Quantity
				out = append(out, existing)
			}
			continue
		}
		out = append(out, existing)
	}

	if err := s.store.Save(ctx, token, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear drops the whole cart.
func (s *CartService) Clear(ctx context.Context, token string) error {
	return s.store.Clear(ctx, token)
}

// PricedCartLine is a cart line joined with its product and prices.
type PricedCartLine struct {
	CartLine
	ProductTitle string  `json:"product_title"`
	UnitPrice    float64 `json:"unit_price"`
	AddonPrice   float64 `json:"addon_price"`
	LineTotal    float64 `json:"line_total"`
}

// Price resolves the cart against the catalog and computes totals.
// Lines whose product vanished are skipped.
func (s *CartService) Price(ctx context.Context, token string) ([]PricedCartLine, Totals, error) {
	lines, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, Totals{}, err
	}

	cfg := s.settings.Get()

	priced := make([]PricedCartLine, 0, len(lines))
	calc := make([]PricedLine, 0, len(lines))
	for _, line := range lines {
		var product models.Product
		if err := s.db.First(&product, "id = ?", line.ProductID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, Totals{}, err
		}

		addon := AddonUnitPrice(cfg.AddonPrices, line.Addons)
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}

		priced = append(priced, PricedCartLine{
			CartLine:     line,
			ProductTitle: product.Title + AddonLabel(line.Addons),
			UnitPrice:    product.Price,
			AddonPrice:   addon,
			LineTotal:    Round2((product.Price + addon) * float64(qty)),
		})
		calc = append(calc, PricedLine{BasePrice: product.Price, AddonPrice: addon, Quantity: qty})
	}

	return priced, CalcTotals(calc, cfg.SalesTaxRate, cfg.CardFeeRate), nil
}
