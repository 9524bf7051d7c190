package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/validation"
)

// CreateOrderRequest is an order submission. Items, total, status and date are optional.
type CreateOrderRequest struct {
	OrderDate       *time.Time       `json:"order_date,omitempty"`
	Status          string           `json:"status,omitempty"`
	Total           *decimal.Decimal `json:"total,omitempty"`
	CustomerName    string           `json:"customer_name" validate:"required,min=2,max=255"`
	CustomerEmail   string           `json:"customer_email" validate:"required,email,max=255"`
	CustomerPhone   string           `json:"customer_phone" validate:"required,max=64"`
	ShippingAddress string           `json:"shipping_address" validate:"required,max=1024"`
	Items           []ItemRequest    `json:"items,omitempty" validate:"dive"`
}

type ItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
}

// maxAmount is the largest amount a NUMERIC(14, 2) column holds.
var maxAmount = decimal.RequireFromString("999999999999.99")

// amountMessage returns "" when d fits a NUMERIC(14, 2) column without rounding.
func amountMessage(field string, d decimal.Decimal) string {
	switch {
	case d.IsNegative():
		return fmt.Sprintf("Field '%s' must be greater than or equal to 0", field)
	case d.Exponent() < -2 && !d.Equal(d.Round(2)):
		return fmt.Sprintf("Field '%s' must have at most 2 decimal places", field)
	case d.GreaterThan(maxAmount):
		return fmt.Sprintf("Field '%s' must be at most %s", field, maxAmount.StringFixed(2))
	default:
		return ""
	}
}

// Validate checks mandatory fields, money amounts and the status name.
// Amounts are bounded by the order store columns.
func (r CreateOrderRequest) Validate(v *validator.Validate) error {
	fields := make(map[string]string)

	if err := v.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate order request: %w", err)
		}
		for k, msg := range validation.Messages(verrs) {
			fields[k] = msg
		}
	}

	if r.Total != nil {
		if msg := amountMessage("total", *r.Total); msg != "" {
			fields["total"] = msg
		}
	}
	itemsValid := true
	for i, item := range r.Items {
		key := fmt.Sprintf("items[%d].price", i)
		if msg := amountMessage(key, item.Price); msg != "" {
			fields[key] = msg
			itemsValid = false
		}
	}
	if itemsValid && len(r.Items) > 0 {
		sum := decimal.Zero
		for _, item := range r.Items {
			sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		if sum.GreaterThan(maxAmount) {
			fields["items"] = fmt.Sprintf("Field 'items' must total at most %s", maxAmount.StringFixed(2))
		}
	}
	if strings.TrimSpace(r.Status) != "" {
		if _, err := ParseStatus(r.Status); err != nil {
			fields["status"] = unknownStatusMessage
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

const unknownStatusMessage = "Field 'status' must be one of [PENDING CONFIRMED SHIPPED DELIVERED CANCELLED]"

// ParseStatus accepts a status name in any case.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := allowedTransitions[s]; !ok {
		return "", &ValidationError{Fields: map[string]string{"status": unknownStatusMessage}}
	}
	return s, nil
}
