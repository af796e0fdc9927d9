package validation

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/leaveportal/internal/model"
)

// Виды отказов. Конкретное сообщение для пользователя переносит Rejection.
var (
	ErrInvalidRange         = errors.New("invalid date range")
	ErrBalanceExceeded      = errors.New("leave balance exceeded")
	ErrCasualCapExceeded    = errors.New("casual leave cap exceeded")
	ErrInsufficientLeadTime = errors.New("insufficient lead time")
	ErrOverlapCheckFailed   = errors.New("overlap check failed")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrNetwork              = errors.New("network error")
	ErrServerRejected       = errors.New("server rejected request")
)

var kindCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidRange, "invalid_range"},
	{ErrBalanceExceeded, "balance_exceeded"},
	{ErrCasualCapExceeded, "casual_cap_exceeded"},
	{ErrInsufficientLeadTime, "insufficient_lead_time"},
	{ErrOverlapCheckFailed, "overlap_check_failed"},
	{ErrMissingRequiredField, "missing_required_field"},
	{ErrNetwork, "network_error"},
	{ErrServerRejected, "server_rejected"},
}

// Rejection описывает отказ с понятным пользователю сообщением.
type Rejection struct {
	Err       error
	Message   string
	Field     string
	Category  model.Category
	Available decimal.Decimal
}

func (r *Rejection) Error() string {
	return r.Message
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Reject создаёт отказ указанного вида.
func Reject(kind error, message string) *Rejection {
	return &Rejection{Err: kind, Message: message}
}

// KindOf возвращает машинный код вида отказа.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindCodes {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

// MessageOf возвращает сообщение для пользователя.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var r *Rejection
	if errors.As(err, &r) {
		return r.Message
	}
	return err.Error()
}

// ClearsDates сообщает, должна ли форма сбросить обе даты после такого отказа.
func ClearsDates(err error) bool {
	return errors.Is(err, ErrCasualCapExceeded) || errors.Is(err, ErrInsufficientLeadTime)
}
