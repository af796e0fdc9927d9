package form

import (
	"time"

	"github.com/mmeshcher/leaveportal/internal/model"
)

// Event описывает изменение, поступившее от формы или от внешней проверки.
type Event interface {
	event()
}

// TypeSelected выбирает тип отпуска; nil снимает выбор.
type TypeSelected struct {
	Type *model.LeaveType
}

// DateFromChanged меняет дату начала; нулевое время очищает поле.
type DateFromChanged struct {
	Date time.Time
}

// DateToChanged меняет дату окончания; нулевое время очищает поле.
type DateToChanged struct {
	Date time.Time
}

type HalfDayChanged struct {
	HalfDay bool
}

type ReasonChanged struct {
	Reason string
}

type AttachmentSet struct {
	Attachment *model.Attachment
}

type AttachmentCleared struct{}

// BalanceLoaded сообщает о загруженных остатках; nil означает, что остатки недоступны.
type BalanceLoaded struct {
	Snapshot *model.BalanceSnapshot
}

// OverlapChecked несёт результат проверки пересечений для токена Token.
type OverlapChecked struct {
	Token uint64
	Err   error
}

type SubmitRequested struct{}

// SubmitSucceeded несёт квитанцию бэкенда и его сообщение, если оно было.
type SubmitSucceeded struct {
	Receipt model.Receipt
	Message string
}

type SubmitFailed struct {
	Err error
}

func (TypeSelected) event()      {}
func (DateFromChanged) event()   {}
func (DateToChanged) event()     {}
func (HalfDayChanged) event()    {}
func (ReasonChanged) event()     {}
func (AttachmentSet) event()     {}
func (AttachmentCleared) event() {}
func (BalanceLoaded) event()     {}
func (OverlapChecked) event()    {}
func (SubmitRequested) event()   {}
func (SubmitSucceeded) event()   {}
func (SubmitFailed) event()      {}

// Effect описывает действие, которое сервис должен выполнить после Reduce.
type Effect interface {
	effect()
}

// Notify показывает пользователю одно уведомление.
type Notify struct {
	Notification model.Notification
}

// CheckOverlap запускает проверку пересечений с указанным токеном.
type CheckOverlap struct {
	Token          uint64
	EmployeeNumber string
	DateFrom       time.Time
	DateTo         time.Time
}

// CancelOverlap отменяет проверку, запущенную с токеном Token.
type CancelOverlap struct {
	Token uint64
}

// Submit отправляет принятую заявку в бэкенд.
type Submit struct {
	Request model.AcceptedRequest
}

func (Notify) effect()        {}
func (CheckOverlap) effect()  {}
func (CancelOverlap) effect() {}
func (Submit) effect()        {}
