package service

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/leaveportal/internal/form"
	"github.com/mmeshcher/leaveportal/internal/model"
	"github.com/mmeshcher/leaveportal/internal/validation"
)

// View описывает состояние формы, которое отображает клиент.
type View struct {
	SessionID          string                         `json:"session_id"`
	EmployeeNumber     string                         `json:"employee_number"`
	State              form.State                     `json:"state"`
	LeaveType          *model.LeaveType               `json:"leave_type,omitempty"`
	Category           model.Category                 `json:"category"`
	DateFrom           string                         `json:"date_from"`
	DateTo             string                         `json:"date_to"`
	MinDate            string                         `json:"min_date"`
	HalfDay            bool                           `json:"half_day"`
	Reason             string                         `json:"reason"`
	NumberOfDays       decimal.Decimal                `json:"number_of_days"`
	ShowDuration       bool                           `json:"show_duration"`
	RequiresAttachment bool                           `json:"requires_attachment"`
	Attachment         *AttachmentView                `json:"attachment,omitempty"`
	BlockingError      bool                           `json:"blocking_error"`
	Checking           bool                           `json:"checking"`
	Rejection          *RejectionView                 `json:"rejection,omitempty"`
	Notification       *model.Notification            `json:"notification,omitempty"`
	Types              []model.LeaveType              `json:"types"`
	Balance            map[model.Category]BalanceView `json:"balance,omitempty"`
	Receipt            *model.Receipt                 `json:"receipt,omitempty"`
	SuccessURL         string                         `json:"success_url,omitempty"`
}

// AttachmentView описывает приложенный файл без содержимого.
type AttachmentView struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// RejectionView описывает последний отказ.
type RejectionView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// BalanceView содержит остаток по виду отпуска с учётом годовой отсечки.
type BalanceView struct {
	Total     decimal.Decimal `json:"total"`
	Taken     decimal.Decimal `json:"taken"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
}

// view собирает представление и забирает накопленное уведомление. Вызывается под sess.mu.
func (s *Service) view(sess *session) View {
	d := sess.draft
	v := View{
		SessionID:          sess.id,
		EmployeeNumber:     d.EmployeeNumber,
		State:              d.State,
		LeaveType:          d.LeaveType,
		Category:           d.Category,
		DateFrom:           model.FormatDate(d.DateFrom),
		DateTo:             model.FormatDate(d.DateTo),
		MinDate:            model.FormatDate(d.MinDate),
		HalfDay:            d.HalfDay,
		Reason:             d.Reason,
		NumberOfDays:       d.Days,
		ShowDuration:       d.ShowDuration(),
		RequiresAttachment: d.RequiresAttachment(),
		BlockingError:      d.BlockingError,
		Checking:           d.Checking,
		Notification:       sess.notice,
		Types:              sess.types,
		Balance:            balanceView(d.Balance, s.today()),
		Receipt:            d.Receipt,
	}
	sess.notice = nil

	if a := d.Attachment; a != nil {
		v.Attachment = &AttachmentView{FileName: a.FileName, ContentType: a.ContentType, Size: a.Size}
	}
	if d.Rejection != nil {
		rv := &RejectionView{Kind: validation.KindOf(d.Rejection), Message: validation.MessageOf(d.Rejection)}
		var r *validation.Rejection
		if errors.As(d.Rejection, &r) {
			rv.Field = r.Field
		}
		v.Rejection = rv
	}
	if d.Receipt != nil {
		v.SuccessURL = successURL(*d.Receipt)
	}
	return v
}

func balanceView(snapshot *model.BalanceSnapshot, today time.Time) map[model.Category]BalanceView {
	if snapshot == nil {
		return nil
	}
	out := make(map[model.Category]BalanceView, len(model.Categories))
	for _, c := range model.Categories {
		b := snapshot.For(c)
		out[c] = BalanceView{
			Total:     b.EffectiveTotal(),
			Taken:     b.EffectiveTaken(today),
			Available: b.Available,
			Pending:   b.Pending,
		}
	}
	return out
}
