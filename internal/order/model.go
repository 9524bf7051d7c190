package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/customer"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) String() string {
	return string(s)
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is treated as a value: reconciliation and the store return new copies
// instead of mutating the caller's order.
type Order struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	OrderDate  time.Time       `json:"order_date" db:"order_date"`
	Status     Status          `json:"status" db:"status"`
	Total      decimal.Decimal `json:"total" db:"total_amount"`
	CustomerID uuid.UUID       `json:"customer_id" db:"customer_id"`

	// Customer is the resolved directory record. It is not persisted with the order.
	Customer *customer.Customer `json:"customer,omitempty" db:"-"`

	// Denormalized snapshot as submitted, independent of the Customer record.
	CustomerName    string `json:"customer_name" db:"customer_name"`
	CustomerEmail   string `json:"customer_email" db:"customer_email"`
	CustomerPhone   string `json:"customer_phone" db:"customer_phone"`
	ShippingAddress string `json:"shipping_address" db:"shipping_address"`

	Items     []OrderItem `json:"items" db:"-"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}
