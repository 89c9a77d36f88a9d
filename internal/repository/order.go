package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"souq_back_end/internal/models"
)

const orderColumns = `order_id, user_id, full_name, phone_number, address, notes,
	delivery_zone, total_price, status, created_at, updated_at`

// ProductLookup resolves product names and images for order listings.
type ProductLookup interface {
	GetMany(ctx context.Context, ids []gocql.UUID) (map[gocql.UUID]models.Product, error)
}

type OrderRepository struct {
	session  SessionFunc
	products ProductLookup
}

func NewOrderRepository(session SessionFunc, products ProductLookup) *OrderRepository {
	return &OrderRepository{session: session, products: products}
}

func scanOrder(s scanner, o *models.Order) bool {
	var userID, status string
	var total float64
	ok := s.Scan(&o.ID, &userID, &o.FullName, &o.PhoneNumber, &o.Address, &o.Notes,
		&o.DeliveryZone, &total, &status, &o.CreatedAt, &o.UpdatedAt)
	if userID != "" {
		o.UserID = &userID
	} else {
		o.UserID = nil
	}
	o.TotalPrice = fromDouble(total)
	o.Status = models.OrderStatus(status)
	return ok
}

func userIDValue(o *models.Order) string {
	if o.UserID == nil {
		return ""
	}
	return *o.UserID
}

// CreateOrder writes the order row and, for signed-in customers, its
// per-user index row in one logged batch.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *models.Order) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	batch := session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, userIDValue(o), o.FullName, o.PhoneNumber, o.Address, o.Notes,
		o.DeliveryZone, toDouble(o.TotalPrice), string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if o.UserID != nil {
		batch.Query(`INSERT INTO orders_by_user (user_id, created_at, order_id, status, total_price)
			VALUES (?, ?, ?, ?, ?)`,
			*o.UserID, o.CreatedAt, o.ID, string(o.Status), toDouble(o.TotalPrice),
		)
	}

	if err := session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// CreateOrderItems writes every item of an order in one logged batch.
func (r *OrderRepository) CreateOrderItems(ctx context.Context, o *models.Order, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	session, err := r.session()
	if err != nil {
		return err
	}

	batch := session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, it := range items {
		batch.Query(`INSERT INTO order_items (order_id, item_id, product_id, quantity, price)
			VALUES (?, ?, ?, ?, ?)`,
			o.ID, it.ID, it.ProductID, it.Quantity, toDouble(it.Price),
		)
	}

	if err := session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *OrderRepository) getOrder(ctx context.Context, session *gocql.Session, id gocql.UUID) (*models.Order, error) {
	var o models.Order
	iter := session.Query(`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, id).WithContext(ctx).Iter()
	found := scanOrder(iter, &o)
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return &o, nil
}

// DeleteOrder removes the order, its items and its per-user index row.
func (r *OrderRepository) DeleteOrder(ctx context.Context, id gocql.UUID) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	o, err := r.getOrder(ctx, session, id)
	if err != nil {
		return err
	}

	batch := session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM order_items WHERE order_id = ?`, id)
	batch.Query(`DELETE FROM orders WHERE order_id = ?`, id)
	if o.UserID != nil {
		batch.Query(`DELETE FROM orders_by_user WHERE user_id = ? AND created_at = ? AND order_id = ?`,
			*o.UserID, o.CreatedAt, id)
	}

	if err := session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

const (
	updateOrderStatusCQL = `UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ? IF EXISTS`
	updateIndexStatusCQL = `UPDATE orders_by_user SET status = ? WHERE user_id = ? AND created_at = ? AND order_id = ? IF EXISTS`
)

type casQuery interface {
	MapScanCAS(dest map[string]interface{}) (applied bool, err error)
}

// appliedOrNotFound runs a lightweight transaction and reports a missing
// row as ErrNotFound.
func appliedOrNotFound(q casQuery) error {
	applied, err := q.MapScanCAS(make(map[string]interface{}))
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets the status on the order, then on its per-user index row.
// Both writes are conditional and never recreate a deleted row.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id gocql.UUID, status models.OrderStatus) (*models.Order, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	o, err := r.getOrder(ctx, session, id)
	if err != nil {
		return nil, err
	}

	o.Status = status
	o.UpdatedAt = time.Now().UTC()

	err = appliedOrNotFound(session.Query(updateOrderStatusCQL, string(status), o.UpdatedAt, id).WithContext(ctx))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if o.UserID != nil {
		err = appliedOrNotFound(session.Query(updateIndexStatusCQL,
			string(status), *o.UserID, o.CreatedAt, id).WithContext(ctx))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("update order index status: %w", err)
		}
	}
	return o, nil
}

// Get returns one order with its items.
func (r *OrderRepository) Get(ctx context.Context, id gocql.UUID) (*models.OrderWithItems, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	o, err := r.getOrder(ctx, session, id)
	if err != nil {
		return nil, err
	}

	withItems, err := r.attachItems(ctx, session, []models.Order{*o})
	if err != nil {
		return nil, err
	}
	return &withItems[0], nil
}

// ListAll returns every order with its items, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]models.OrderWithItems, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT ` + orderColumns + ` FROM orders`).WithContext(ctx).Iter()
	var orders []models.Order
	var o models.Order
	for scanOrder(iter, &o) {
		orders = append(orders, o)
		o = models.Order{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	sortNewestFirst(orders)
	return r.attachItems(ctx, session, orders)
}

// ListByUser returns the orders of one customer, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]models.OrderWithItems, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT order_id FROM orders_by_user WHERE user_id = ?`, userID).WithContext(ctx).Iter()
	var ids []gocql.UUID
	var id gocql.UUID
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}

	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		o, err := r.getOrder(ctx, session, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	sortNewestFirst(orders)
	return r.attachItems(ctx, session, orders)
}

func sortNewestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (r *OrderRepository) itemsOf(ctx context.Context, session *gocql.Session, orderID gocql.UUID) ([]models.OrderItem, error) {
	iter := session.Query(`SELECT item_id, product_id, quantity, price FROM order_items WHERE order_id = ?`, orderID).
		WithContext(ctx).Iter()

	var items []models.OrderItem
	var it models.OrderItem
	var price float64
	for iter.Scan(&it.ID, &it.ProductID, &it.Quantity, &price) {
		it.OrderID = orderID
		it.Price = fromDouble(price)
		items = append(items, it)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// attachItems loads the items of every order concurrently, then joins the
// product name and image.
func (r *OrderRepository) attachItems(ctx context.Context, session *gocql.Session, orders []models.Order) ([]models.OrderWithItems, error) {
	itemSets := make([][]models.OrderItem, len(orders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range orders {
		i := i
		g.Go(func() error {
			items, err := r.itemsOf(gctx, session, orders[i].ID)
			if err != nil {
				return err
			}
			itemSets[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[gocql.UUID]struct{})
	var productIDs []gocql.UUID
	for _, items := range itemSets {
		for _, it := range items {
			if _, ok := seen[it.ProductID]; !ok {
				seen[it.ProductID] = struct{}{}
				productIDs = append(productIDs, it.ProductID)
			}
		}
	}

	products, err := r.products.GetMany(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	out := make([]models.OrderWithItems, len(orders))
	for i, o := range orders {
		details := make([]models.OrderItemDetail, 0, len(itemSets[i]))
		for _, it := range itemSets[i] {
			d := models.OrderItemDetail{OrderItem: it}
			if p, ok := products[it.ProductID]; ok {
				d.ProductName = p.Name
				d.ProductImage = p.Image
			}
			details = append(details, d)
		}
		out[i] = models.OrderWithItems{Order: o, Items: details}
	}
	return out, nil
}

// Stats counts orders per status and sums revenue over all orders.
func (r *OrderRepository) Stats(ctx context.Context) (*models.OrderStats, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	stats := &models.OrderStats{
		TotalRevenue: decimal.Zero,
		ByStatus:     make(map[models.OrderStatus]int),
	}

	iter := session.Query(`SELECT status, total_price FROM orders`).WithContext(ctx).Iter()
	var status string
	var price float64
	for iter.Scan(&status, &price) {
		stats.TotalOrders++
		stats.ByStatus[models.OrderStatus(status)]++
		stats.TotalRevenue = stats.TotalRevenue.Add(fromDouble(price))
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}

	stats.PendingOrders = stats.ByStatus[models.StatusPending]
	return stats, nil
}
