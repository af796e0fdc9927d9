package validation

import (
	"strings"
	"time"

	"github.com/mmeshcher/leaveportal/internal/model"
)

// SubmitInput содержит состояние формы, необходимое для финальной проверки.
type SubmitInput struct {
	EmployeeNumber string
	LeaveType      *model.LeaveType
	Category       model.Category
	DateFrom       time.Time
	DateTo         time.Time
	HalfDay        bool
	Reason         string
	Attachment     *model.Attachment
	BlockingError  bool
}

// ValidateForSubmit повторно выполняет все проверки перед отправкой и останавливается
// на первой неудаче: обязательные поля, продолжительность, лимит casual, срок подачи
// ежегодного отпуска, остаток, признак блокирующей ошибки асинхронной проверки.
func ValidateForSubmit(in SubmitInput, snapshot *model.BalanceSnapshot, today time.Time) (model.AcceptedRequest, error) {
	if err := requireFields(in); err != nil {
		return model.AcceptedRequest{}, err
	}

	days, err := ComputeDuration(in.DateFrom, in.DateTo, in.HalfDay)
	if err != nil {
		return model.AcceptedRequest{}, err
	}
	if !days.IsPositive() {
		return model.AcceptedRequest{}, Reject(ErrInvalidRange, "Invalid date range selected.")
	}

	if err := EvaluateCasualCap(in.Category, days); err != nil {
		return model.AcceptedRequest{}, err
	}
	if err := EvaluateAnnualLeadTime(in.Category, in.DateFrom, today); err != nil {
		return model.AcceptedRequest{}, err
	}
	if err := EvaluateBalance(in.Category, days, snapshot); err != nil {
		return model.AcceptedRequest{}, err
	}
	if in.BlockingError {
		return model.AcceptedRequest{}, Reject(ErrOverlapCheckFailed, "Please resolve the leave availability problem before submitting.")
	}

	return model.AcceptedRequest{
		EmployeeNumber: in.EmployeeNumber,
		LeaveTypeID:    in.LeaveType.ID,
		LeaveTypeName:  in.LeaveType.Name,
		Category:       in.Category,
		DateFrom:       model.DateOf(in.DateFrom),
		DateTo:         model.DateOf(in.DateTo),
		HalfDay:        in.HalfDay,
		Days:           days,
		Reason:         strings.TrimSpace(in.Reason),
		Attachment:     in.Attachment,
	}, nil
}

func requireFields(in SubmitInput) error {
	missing := ""
	switch {
	case in.LeaveType == nil:
		missing = "holiday_status_id"
	case in.DateFrom.IsZero():
		missing = "request_date_from"
	case in.DateTo.IsZero():
		missing = "request_date_to"
	case strings.TrimSpace(in.Reason) == "":
		missing = "name"
	}
	if missing != "" {
		return &Rejection{Err: ErrMissingRequiredField, Message: "Please fill in all required fields.", Field: missing}
	}

	if RequiresAttachment(in.Category) && in.Attachment == nil {
		return &Rejection{
			Err:      ErrMissingRequiredField,
			Message:  "Please attach a supporting document for this leave type.",
			Field:    "attachment",
			Category: in.Category,
		}
	}
	return nil
}
