package form

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/leaveportal/internal/model"
	"github.com/mmeshcher/leaveportal/internal/validation"
)

const defaultSubmitMessage = "Leave request submitted successfully!"

// errCheckPending возвращается при отправке, пока проверка пересечений не завершилась.
var errCheckPending = validation.Reject(validation.ErrOverlapCheckFailed,
	"Leave availability is still being checked. Please try again in a moment.")

// Reduce применяет событие к черновику. today задаёт текущую дату в часовом поясе сервиса.
func Reduce(d Draft, ev Event, today time.Time) (Draft, []Effect) {
	switch e := ev.(type) {
	case TypeSelected:
		if d.Locked() {
			return d, nil
		}
		d.LeaveType = e.Type
		d.Category = model.CategoryUnknown
		if e.Type != nil {
			d.Category = validation.ClassifyCategory(e.Type.Name)
		}
		return revalidate(d, today)

	case DateFromChanged:
		if d.Locked() {
			return d, nil
		}
		d.DateFrom = model.DateOf(e.Date)
		return revalidate(d, today)

	case DateToChanged:
		if d.Locked() {
			return d, nil
		}
		d.DateTo = model.DateOf(e.Date)
		return revalidate(d, today)

	case HalfDayChanged:
		if d.Locked() {
			return d, nil
		}
		d.HalfDay = e.HalfDay
		return revalidate(d, today)

	case ReasonChanged:
		if !d.Locked() {
			d.Reason = e.Reason
			d = dropMissingField(d)
		}
		return d, nil

	case AttachmentSet:
		if !d.Locked() {
			d.Attachment = e.Attachment
			d = dropMissingField(d)
		}
		return d, nil

	case AttachmentCleared:
		if !d.Locked() {
			d.Attachment = nil
		}
		return d, nil

	case BalanceLoaded:
		d.Balance = e.Snapshot
		if d.Locked() || d.LeaveType == nil || d.DateFrom.IsZero() || d.DateTo.IsZero() {
			return d, nil
		}
		return revalidate(d, today)

	case OverlapChecked:
		return overlapChecked(d, e)

	case SubmitRequested:
		return submitRequested(d, today)

	case SubmitSucceeded:
		if d.State != StateSubmitting {
			return d, nil
		}
		receipt := e.Receipt
		d.State = StateSubmitted
		d.Receipt = &receipt
		d.Rejection = nil
		msg := e.Message
		if msg == "" {
			msg = defaultSubmitMessage
		}
		return d, []Effect{Notify{Notification: model.Notification{Level: model.NotificationSuccess, Message: msg}}}

	case SubmitFailed:
		if d.State != StateSubmitting {
			return d, nil
		}
		// Черновик не меняется, пользователь может отправить его повторно.
		d.State = StateValid
		d.Rejection = e.Err
		return d, []Effect{notifyError(e.Err)}
	}

	return d, nil
}

// revalidate повторяет синхронные проверки после изменения типа, дат или признака
// половины дня и при успехе запрашивает новую проверку пересечений.
func revalidate(d Draft, today time.Time) (Draft, []Effect) {
	var effects []Effect
	if d.Checking {
		effects = append(effects, CancelOverlap{Token: d.OverlapToken})
		d.Checking = false
	}

	d.Rejection = nil
	d.MinDate = validation.MinimumStartDate(d.Category, today)

	if err := validation.EvaluateDateWindow(d.Category, d.DateFrom, d.DateTo, today); err != nil {
		d = clearDates(d)
		return reject(d, err, effects)
	}

	days, err := validation.ComputeDuration(d.DateFrom, d.DateTo, d.HalfDay)
	d.Days = days
	if err != nil {
		// Обратный диапазон только скрывает продолжительность.
		d.Rejection = err
		d.State = d.deriveState()
		return d, effects
	}
	if d.LeaveType == nil || days.IsZero() {
		d.State = d.deriveState()
		return d, effects
	}

	if err := validation.EvaluateCasualCap(d.Category, days); err != nil {
		d = clearDates(d)
		return reject(d, err, effects)
	}
	if err := validation.EvaluateBalance(d.Category, days, d.Balance); err != nil {
		return reject(d, err, effects)
	}

	d.OverlapToken++
	d.Checking = true
	d.State = d.deriveState()
	effects = append(effects, CheckOverlap{
		Token:          d.OverlapToken,
		EmployeeNumber: d.EmployeeNumber,
		DateFrom:       d.DateFrom,
		DateTo:         d.DateTo,
	})
	return d, effects
}

func overlapChecked(d Draft, e OverlapChecked) (Draft, []Effect) {
	if !d.Checking || e.Token != d.OverlapToken {
		return d, nil
	}
	d.Checking = false

	if e.Err != nil {
		d.BlockingError = true
		d.Rejection = e.Err
		d.State = d.deriveState()
		return d, []Effect{notifyError(e.Err)}
	}

	d.BlockingError = false
	d.Rejection = nil
	d.State = d.deriveState()
	return d, nil
}

func submitRequested(d Draft, today time.Time) (Draft, []Effect) {
	if d.Locked() {
		return d, nil
	}
	if d.Checking {
		d.Rejection = errCheckPending
		return d, []Effect{notifyError(errCheckPending)}
	}

	req, err := validation.ValidateForSubmit(d.SubmitInput(), d.Balance, today)
	if err != nil {
		if validation.ClearsDates(err) {
			d = clearDates(d)
		}
		return reject(d, err, nil)
	}

	d.Rejection = nil
	d.State = StateSubmitting
	return d, []Effect{Submit{Request: req}}
}

func reject(d Draft, err error, effects []Effect) (Draft, []Effect) {
	d.Rejection = err
	d.State = d.deriveState()
	return d, append(effects, notifyError(err))
}

// dropMissingField снимает отказ о незаполненном поле, который мог остаться после
// неудачной отправки; остальные отказы снимаются только перепроверкой.
func dropMissingField(d Draft) Draft {
	if errors.Is(d.Rejection, validation.ErrMissingRequiredField) {
		d.Rejection = nil
		d.State = d.deriveState()
	}
	return d
}

func clearDates(d Draft) Draft {
	d.DateFrom = time.Time{}
	d.DateTo = time.Time{}
	d.Days = decimal.Zero
	return d
}

func notifyError(err error) Notify {
	return Notify{Notification: model.Notification{
		Level:   model.NotificationError,
		Kind:    validation.KindOf(err),
		Message: validation.MessageOf(err),
	}}
}
