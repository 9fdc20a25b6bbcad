package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmkart/order-core/internal/cart"
	"github.com/pharmkart/order-core/internal/catalog"
	"github.com/pharmkart/order-core/internal/order"
	"github.com/pharmkart/order-core/internal/outbox"
	"github.com/pharmkart/order-core/internal/payment"
)

// MemoryStore backs every repository interface with mutex-guarded maps.
// It carries the same transition semantics as the SQL store, so tests and
// database-less local runs exercise the real state machine.
type MemoryStore struct {
	mu sync.Mutex

	items      map[int64]*catalog.Item
	carts      map[string]*cart.Cart
	activeCart map[string]string // userID -> active cartID
	lines      []*lineRec
	orders     map[string]*order.Order
	orderSeq   []string // insertion order of order ids
	payments   map[string]*payment.Payment
	payByRef   map[string]string // gateway ref -> payment id
	events     []*outbox.Event
	lineSeq    int64
	eventSeq   int64
}

type lineRec struct {
	id       string
	cartID   string
	orderID  string
	itemID   int64
	quantity int
	price    decimal.Decimal
	seq      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:      make(map[int64]*catalog.Item),
		carts:      make(map[string]*cart.Cart),
		activeCart: make(map[string]string),
		orders:     make(map[string]*order.Order),
		payments:   make(map[string]*payment.Payment),
		payByRef:   make(map[string]string),
	}
}

// SeedItems loads catalog entries, replacing any with the same id.
func (s *MemoryStore) SeedItems(items []catalog.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		item := items[i]
		s.items[item.ID] = &item
	}
}

// --- catalog.Repository ---

func (s *MemoryStore) GetItem(_ context.Context, id int64) (*catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, catalog.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *MemoryStore) FindByName(_ context.Context, pattern string) (*catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	needle := strings.ToLower(pattern)
	for _, id := range ids {
		if strings.Contains(strings.ToLower(s.items[id].Name), needle) {
			copied := *s.items[id]
			return &copied, nil
		}
	}
	return nil, catalog.ErrItemNotFound
}

// --- cart.Repository ---

func (s *MemoryStore) GetActiveCart(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCartLocked(userID)
}

func (s *MemoryStore) GetOrCreateActiveCart(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.activeCartLocked(userID); err == nil {
		return existing, nil
	}

	created := &cart.Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    cart.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	s.carts[created.ID] = created
	s.activeCart[userID] = created.ID
	copied := *created
	return &copied, nil
}

func (s *MemoryStore) activeCartLocked(userID string) (*cart.Cart, error) {
	cartID, ok := s.activeCart[userID]
	if !ok {
		return nil, cart.ErrNoActiveCart
	}
	copied := *s.carts[cartID]
	return &copied, nil
}

func (s *MemoryStore) UpsertLineItem(_ context.Context, cartID string, itemID int64, quantity int, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range s.lines {
		if line.cartID == cartID && line.itemID == itemID {
			line.quantity += quantity
			return nil
		}
	}

	s.lineSeq++
	s.lines = append(s.lines, &lineRec{
		id:       uuid.New().String(),
		cartID:   cartID,
		itemID:   itemID,
		quantity: quantity,
		price:    price,
		seq:      s.lineSeq,
	})
	return nil
}

func (s *MemoryStore) ListLineItems(_ context.Context, cartID string) ([]cart.LineItemView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var views []cart.LineItemView
	for _, line := range s.lines {
		if line.cartID != cartID {
			continue
		}
		item, ok := s.items[line.itemID]
		if !ok {
			return nil, fmt.Errorf("line item references unknown item %d", line.itemID)
		}
		views = append(views, cart.LineItemView{
			ItemID:    line.itemID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			Quantity:  line.quantity,
			UnitPrice: line.price,
			LineTotal: line.price.Mul(decimal.NewFromInt(int64(line.quantity))),
		})
	}
	return views, nil
}

func (s *MemoryStore) RemoveLineItem(_ context.Context, cartID string, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, line := range s.lines {
		if line.cartID == cartID && line.itemID == itemID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return nil
		}
	}
	return cart.ErrLineItemNotFound
}

// --- order.Repository ---

func (s *MemoryStore) CompleteOrder(_ context.Context, userID string, total decimal.Decimal) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cartID, ok := s.activeCart[userID]
	if !ok {
		return nil, cart.ErrNoActiveCart
	}

	var cartLines []*lineRec
	for _, line := range s.lines {
		if line.cartID == cartID {
			cartLines = append(cartLines, line)
		}
	}
	if len(cartLines) == 0 {
		return nil, cart.ErrEmptyCart
	}

	// Validate stock for every line before consuming any of it.
	for _, line := range cartLines {
		item, ok := s.items[line.itemID]
		if !ok || item.Stock < line.quantity {
			return nil, catalog.ErrInsufficientStock
		}
	}
	for _, line := range cartLines {
		s.items[line.itemID].Stock -= line.quantity
	}

	placed := &order.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Status:      order.StatusCompleted,
		TotalAmount: total,
		CreatedAt:   time.Now().UTC(),
	}
	s.orders[placed.ID] = placed
	s.orderSeq = append(s.orderSeq, placed.ID)

	for _, line := range cartLines {
		line.orderID = placed.ID
		line.cartID = ""
	}
	s.carts[cartID].Status = cart.StatusInactive
	delete(s.activeCart, userID)

	s.appendEventLocked(order.EventOrderCompleted, placed, cartLines)

	copied := *placed
	return &copied, nil
}

func (s *MemoryStore) Cancel(_ context.Context, orderID string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	if existing.Status == order.StatusCancelled {
		return nil, order.ErrAlreadyCancelled
	}

	existing.Status = order.StatusCancelled

	var orderLines []*lineRec
	for _, line := range s.lines {
		if line.orderID == orderID {
			orderLines = append(orderLines, line)
			if item, ok := s.items[line.itemID]; ok {
				item.Stock += line.quantity
			}
		}
	}

	s.appendEventLocked(order.EventOrderCancelled, existing, orderLines)

	copied := *existing
	return &copied, nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	copied := *existing
	return &copied, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]order.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := []order.View{}
	// Newest first.
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		o := s.orders[s.orderSeq[i]]
		if o.UserID != userID {
			continue
		}
		view := order.View{
			OrderID:     o.ID,
			Status:      o.Status,
			TotalAmount: o.TotalAmount,
			CreatedAt:   o.CreatedAt,
		}
		for _, line := range s.lines {
			if line.orderID != o.ID {
				continue
			}
			item := s.items[line.itemID]
			name := ""
			if item != nil {
				name = item.Name
			}
			view.Lines = append(view.Lines, order.Line{
				ItemID:    line.itemID,
				Name:      name,
				Quantity:  line.quantity,
				UnitPrice: line.price,
				LineTotal: line.price.Mul(decimal.NewFromInt(int64(line.quantity))),
			})
		}
		views = append(views, view)
	}
	return views, nil
}

// --- payment.Repository ---

func (s *MemoryStore) Insert(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *p
	s.payments[p.ID] = &copied
	return nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, id, gatewayRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return payment.ErrPaymentNotFound
	}
	if owner, exists := s.payByRef[gatewayRef]; exists && owner != id {
		return payment.ErrDuplicateRef
	}
	p.Status = payment.StatusCompleted
	p.GatewayRef = gatewayRef
	s.payByRef[gatewayRef] = id
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return payment.ErrPaymentNotFound
	}
	p.Status = payment.StatusFailed
	return nil
}

func (s *MemoryStore) FindByGatewayRef(_ context.Context, ref string) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.payByRef[ref]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	copied := *s.payments[id]
	return &copied, nil
}

// --- outbox.Repository ---

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*outbox.Event
	for _, e := range s.events {
		if e.ProcessedAt != nil {
			continue
		}
		copied := *e
		events = append(events, &copied)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *MemoryStore) MarkEventProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			now := time.Now().UTC()
			e.ProcessedAt = &now
			return nil
		}
	}
	return fmt.Errorf("outbox event %d not found", id)
}

func (s *MemoryStore) appendEventLocked(eventType string, o *order.Order, lines []*lineRec) {
	type eventLine struct {
		ItemID   int64           `json:"item_id"`
		Quantity int             `json:"quantity"`
		Price    decimal.Decimal `json:"price"`
	}
	eventLines := make([]eventLine, 0, len(lines))
	for _, line := range lines {
		eventLines = append(eventLines, eventLine{ItemID: line.itemID, Quantity: line.quantity, Price: line.price})
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":     o.ID,
		"user_id":      o.UserID,
		"status":       o.Status,
		"total_amount": o.TotalAmount,
		"items":        eventLines,
		"occurred_at":  time.Now().UTC(),
	})
	if err != nil {
		return
	}

	s.eventSeq++
	s.events = append(s.events, &outbox.Event{
		ID:          s.eventSeq,
		AggregateID: o.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
}
