package validation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/leaveportal/internal/model"
)

const (
	// CasualCapDays задаёт максимальную продолжительность одной заявки на casual-отпуск.
	CasualCapDays = 2
	// AnnualLeadWorkingDays задаёт, за сколько рабочих дней нужно подавать заявку на ежегодный отпуск.
	AnnualLeadWorkingDays = 3
)

var casualCap = decimal.NewFromInt(CasualCapDays)

// EvaluateBalance проверяет, что запрошенные дни не превышают доступный остаток.
// Casual ограничен собственным лимитом, у неизвестных видов остаток не ведётся,
// а без загруженного снимка проверка не выполняется.
func EvaluateBalance(c model.Category, days decimal.Decimal, snapshot *model.BalanceSnapshot) error {
	if c == model.CategoryCasual || c == model.CategoryUnknown || snapshot == nil {
		return nil
	}

	available := snapshot.For(c).Available
	if days.GreaterThan(available) {
		return &Rejection{
			Err:       ErrBalanceExceeded,
			Message:   fmt.Sprintf("You cannot request more than your available %s leave balance (%s day(s) left).", c, available.String()),
			Category:  c,
			Available: available,
		}
	}
	return nil
}

// EvaluateCasualCap проверяет фиксированный лимит casual-отпуска независимо от остатка.
func EvaluateCasualCap(c model.Category, days decimal.Decimal) error {
	if c == model.CategoryCasual && days.GreaterThan(casualCap) {
		return &Rejection{
			Err:      ErrCasualCapExceeded,
			Message:  fmt.Sprintf("Casual Leave cannot exceed %d days.", CasualCapDays),
			Category: c,
		}
	}
	return nil
}

// MinimumStartDate возвращает первую допустимую дату начала отпуска: для ежегодного
// отпуска через AnnualLeadWorkingDays рабочих дней, для остальных сегодняшний день.
func MinimumStartDate(c model.Category, today time.Time) time.Time {
	if c == model.CategoryAnnual {
		return AddWorkingDays(today, AnnualLeadWorkingDays)
	}
	return model.DateOf(today)
}

// EvaluateAnnualLeadTime проверяет срок подачи заявки на ежегодный отпуск.
func EvaluateAnnualLeadTime(c model.Category, from, today time.Time) error {
	if c != model.CategoryAnnual || from.IsZero() {
		return nil
	}
	if model.DateOf(from).Before(MinimumStartDate(c, today)) {
		return leadTimeRejection()
	}
	return nil
}

// EvaluateDateWindow проверяет уже выбранные даты относительно минимальной допустимой даты.
// Для ежегодного отпуска нарушение даёт ErrInsufficientLeadTime, для остальных отказ о дате в прошлом.
func EvaluateDateWindow(c model.Category, from, to, today time.Time) error {
	minDate := MinimumStartDate(c, today)
	early := (!from.IsZero() && model.DateOf(from).Before(minDate)) ||
		(!to.IsZero() && model.DateOf(to).Before(minDate))
	if !early {
		return nil
	}
	if c == model.CategoryAnnual {
		return leadTimeRejection()
	}
	return Reject(ErrInvalidRange, "Leave cannot be requested for a past date.")
}

func leadTimeRejection() *Rejection {
	return &Rejection{
		Err:      ErrInsufficientLeadTime,
		Message:  fmt.Sprintf("Annual leave must be requested at least %d working days in advance.", AnnualLeadWorkingDays),
		Category: model.CategoryAnnual,
	}
}
