// Package form описывает черновик заявки на отпуск и его конечный автомат.
//
// Черновик меняется только через Reduce: функция получает текущее состояние и событие,
// возвращает новое состояние и список побочных эффектов, которые выполняет сервис.
package form

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/leaveportal/internal/model"
	"github.com/mmeshcher/leaveportal/internal/validation"
)

// State задаёт состояние черновика.
type State string

const (
	StateEmpty        State = "empty"
	StateTypeSelected State = "type_selected"
	StateRangeEntered State = "range_entered"
	StateValid        State = "valid"
	StateInvalid      State = "invalid"
	StateSubmitting   State = "submitting"
	StateSubmitted    State = "submitted"
)

// Draft содержит состояние одной формы заявки.
type Draft struct {
	EmployeeNumber string
	State          State
	LeaveType      *model.LeaveType
	Category       model.Category
	DateFrom       time.Time
	DateTo         time.Time
	HalfDay        bool
	Reason         string
	Attachment     *model.Attachment
	Days           decimal.Decimal
	MinDate        time.Time
	Balance        *model.BalanceSnapshot

	// BlockingError выставляется неудачной асинхронной проверкой и снимается
	// только успешной проверкой с актуальным токеном.
	BlockingError bool
	OverlapToken  uint64
	Checking      bool

	Rejection error
	Receipt   *model.Receipt
}

// New создаёт пустой черновик сотрудника.
func New(employeeNumber string, today time.Time) Draft {
	return Draft{
		EmployeeNumber: employeeNumber,
		State:          StateEmpty,
		Category:       model.CategoryUnknown,
		Days:           decimal.Zero,
		MinDate:        model.DateOf(today),
	}
}

// RequiresAttachment сообщает, нужен ли документ для выбранного типа.
func (d Draft) RequiresAttachment() bool {
	return d.LeaveType != nil && validation.RequiresAttachment(d.Category)
}

// ShowDuration сообщает, нужно ли показывать рассчитанную продолжительность.
func (d Draft) ShowDuration() bool {
	return d.Days.IsPositive()
}

// Locked сообщает, что поля черновика больше нельзя менять.
func (d Draft) Locked() bool {
	return d.State == StateSubmitting || d.State == StateSubmitted
}

// SubmitInput собирает данные черновика для финальной проверки.
func (d Draft) SubmitInput() validation.SubmitInput {
	return validation.SubmitInput{
		EmployeeNumber: d.EmployeeNumber,
		LeaveType:      d.LeaveType,
		Category:       d.Category,
		DateFrom:       d.DateFrom,
		DateTo:         d.DateTo,
		HalfDay:        d.HalfDay,
		Reason:         d.Reason,
		Attachment:     d.Attachment,
		BlockingError:  d.BlockingError,
	}
}

func (d Draft) deriveState() State {
	switch {
	case d.LeaveType == nil:
		return StateEmpty
	case d.Rejection != nil || d.BlockingError:
		return StateInvalid
	case d.DateFrom.IsZero() || d.DateTo.IsZero():
		return StateTypeSelected
	case d.Checking:
		return StateRangeEntered
	default:
		return StateValid
	}
}
