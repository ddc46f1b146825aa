package gateway

import (
	"errors"
	"fmt"
	"strconv"

	"fulfillment-app/internal/domain/orders"
)

var ErrOrderNotPending = errors.New("order is not pending payment")

// Notification payment states as the gateway reports them.
const (
	StateComplete  = "COMPLETE"
	StatePending   = "PENDING"
	StateFailed    = "FAILED"
	StateCancelled = "CANCELLED"
)

// Config carries the merchant settings for the redirect gateway.
type Config struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	ProcessURL  string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

// PaymentForm is what the buyer's browser POSTs to the gateway.
type PaymentForm struct {
	Action string  `json:"action"`
	Fields []Field `json:"fields"`
}

type Adapter struct {
	cfg Config
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// BuildForm produces the signed redirect form for a pending order. It never
// changes order status; only the notification path does that.
func (a *Adapter) BuildForm(order *orders.Order, itemName string) (*PaymentForm, error) {
	if order.Status != orders.StatusPending {
		return nil, ErrOrderNotPending
	}

	fields := []Field{
		{Name: "merchant_id", Value: a.cfg.MerchantID},
		{Name: "merchant_key", Value: a.cfg.MerchantKey},
		{Name: "return_url", Value: a.cfg.ReturnURL},
		{Name: "cancel_url", Value: a.cfg.CancelURL},
		{Name: "notify_url", Value: a.cfg.NotifyURL},
		{Name: "m_payment_id", Value: order.OrderNumber},
		{Name: "amount", Value: strconv.FormatFloat(order.Total(), 'f', 2, 64)},
		{Name: "item_name", Value: itemName},
	}
	fields = append(fields, Field{Name: "signature", Value: Sign(fields, a.cfg.Passphrase)})

	return &PaymentForm{Action: a.cfg.ProcessURL, Fields: fields}, nil
}

// VerifyNotification checks the ITN signature over the raw body's field
// order and returns the parsed fields.
func (a *Adapter) VerifyNotification(body string) ([]Field, error) {
	fields, err := ParseBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := Verify(fields, a.cfg.Passphrase); err != nil {
		return nil, err
	}
	return fields, nil
}

// MapPaymentStatus translates a gateway payment state into the ledger
// target status. COMPLETE settles immediately; PENDING means funds are
// authorized with settlement outstanding.
func MapPaymentStatus(state string) (string, bool) {
	switch state {
	case StateComplete:
		return orders.StatusCompleted, true
	case StatePending:
		return orders.StatusPaid, true
	case StateFailed, StateCancelled:
		return orders.StatusCancelled, true
	default:
		return "", false
	}
}
