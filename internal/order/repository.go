package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Repository is the durable order store.
type Repository interface {
	// Save persists a new order with its items and returns the stored copy with identities assigned.
	Save(ctx context.Context, order Order) (*Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindAll(ctx context.Context) ([]Order, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `id, customer_id, order_date, status, total_amount, customer_name, customer_email, customer_phone, shipping_address, created_at, updated_at`

const itemColumns = `id, order_id, product_id, price, quantity`

func (r *postgresRepository) Save(ctx context.Context, order Order) (saved *Order, err error) {
	if order.ID == uuid.Nil {
		order.ID, err = uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", order.ID).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Stringer("order_id", order.ID).Msg("repository: failed to commit transaction")
			saved = nil
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	queryOrder := `
		INSERT INTO order_service.orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, queryOrder,
		order.ID,
		order.CustomerID,
		order.OrderDate,
		string(order.Status),
		order.Total,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.ShippingAddress,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	items := make([]OrderItem, len(order.Items))
	copy(items, order.Items)

	queryItem := `
		INSERT INTO order_service.order_items (` + itemColumns + `, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range items {
		item := &items[i]
		if item.ID, err = uuid.NewV4(); err != nil {
			return nil, fmt.Errorf("repository: failed to generate order item ID: %w", err)
		}
		item.OrderID = order.ID

		_, err = tx.Exec(ctx, queryItem, item.ID, item.OrderID, item.ProductID, item.Price, item.Quantity, i)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to insert order item for order %s: %w", order.ID, err)
		}
	}
	order.Items = items

	return &order, nil
}

func (r *postgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM order_service.orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	orders := []Order{*order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

func (r *postgresRepository) FindAll(ctx context.Context) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM order_service.orders ORDER BY created_at DESC`
	return r.queryOrders(ctx, query)
}

func (r *postgresRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM order_service.orders WHERE customer_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, customerID)
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	query := `
		UPDATE order_service.orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, string(newStatus), time.Now().UTC(), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	// order_items rows go with the order through ON DELETE CASCADE.
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM order_service.orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}
	rows.Close()

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// attachItems loads the items of all given orders with a single query.
func (r *postgresRepository) attachItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[uuid.UUID]int, len(orders))
	ids := make([]string, 0, len(orders))
	for i := range orders {
		orders[i].Items = make([]OrderItem, 0)
		index[orders[i].ID] = i
		ids = append(ids, orders[i].ID.String())
	}

	query := `SELECT ` + itemColumns + ` FROM order_service.order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Price, &item.Quantity); err != nil {
			return fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating order items: %w", err)
	}

	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order  Order
		status string
	)
	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.OrderDate,
		&status,
		&order.Total,
		&order.CustomerName,
		&order.CustomerEmail,
		&order.CustomerPhone,
		&order.ShippingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = Status(status)
	return &order, nil
}
