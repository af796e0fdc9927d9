// Package model содержит доменные сущности портала заявок на отпуск.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout задаёт формат календарных дат, которым обмениваются форма и бэкенд.
const DateLayout = "2006-01-02"

// Category описывает вид отпуска, определённый по названию типа.
type Category string

const (
	CategoryUnknown   Category = "unknown"
	CategoryCasual    Category = "casual"
	CategoryAnnual    Category = "annual"
	CategoryMedical   Category = "medical"
	CategoryFuneral   Category = "funeral"
	CategoryMarriage  Category = "marriage"
	CategoryUnpaid    Category = "unpaid"
	CategoryMaternity Category = "maternity"
	CategoryPaternity Category = "paternity"
)

// Categories перечисляет известные виды отпуска в порядке приоритета сопоставления.
var Categories = []Category{
	CategoryCasual,
	CategoryAnnual,
	CategoryMedical,
	CategoryFuneral,
	CategoryMarriage,
	CategoryUnpaid,
	CategoryMaternity,
	CategoryPaternity,
}

// LeaveType описывает тип отпуска из справочника бэкенда.
type LeaveType struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Color              int    `json:"color"`
	RequiresAllocation bool   `json:"requires_allocation"`
	ValidationType     string `json:"leave_validation_type"`
}

// Balance содержит остатки по одному виду отпуска.
type Balance struct {
	Total        decimal.Decimal     `json:"total"`
	Taken        decimal.Decimal     `json:"taken"`
	Available    decimal.Decimal     `json:"available"`
	Pending      decimal.Decimal     `json:"pending"`
	TotalDynamic decimal.NullDecimal `json:"total_dynamic"`
	SystemTaken  decimal.NullDecimal `json:"system_taken"`
}

// EffectiveTotal возвращает начисленный объём с учётом динамического пересчёта ежегодного отпуска.
func (b Balance) EffectiveTotal() decimal.Decimal {
	if b.TotalDynamic.Valid {
		return b.TotalDynamic.Decimal
	}
	return b.Total
}

// EffectiveTaken возвращает использованные дни: до 30 июня включительно учитывается taken,
// после него system_taken, если бэкенд его прислал.
func (b Balance) EffectiveTaken(today time.Time) decimal.Decimal {
	cutoff := time.Date(today.Year(), time.June, 30, 0, 0, 0, 0, time.UTC)
	if !DateOf(today).After(cutoff) || !b.SystemTaken.Valid {
		return b.Taken
	}
	return b.SystemTaken.Decimal
}

// BalanceSnapshot содержит остатки сотрудника по всем видам отпуска на момент загрузки.
type BalanceSnapshot struct {
	Balances  map[Category]Balance
	FetchedAt time.Time
}

// For возвращает остаток по виду отпуска; отсутствующие виды заполняются нулями.
func (s *BalanceSnapshot) For(c Category) Balance {
	if s == nil || s.Balances == nil {
		return Balance{}
	}
	return s.Balances[c]
}

// Attachment описывает файл, приложенный к заявке.
type Attachment struct {
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
}

// AcceptedRequest описывает заявку, прошедшую все проверки и готовую к отправке.
type AcceptedRequest struct {
	EmployeeNumber string
	LeaveTypeID    int64
	LeaveTypeName  string
	Category       Category
	DateFrom       time.Time
	DateTo         time.Time
	HalfDay        bool
	Days           decimal.Decimal
	Reason         string
	Attachment     *Attachment
}

// Receipt содержит данные созданной заявки, которые бэкенд возвращает после отправки.
type Receipt struct {
	LeaveID      int64           `json:"leave_id"`
	EmployeeName string          `json:"employee_name"`
	LeaveType    string          `json:"leave_type"`
	DateFrom     string          `json:"date_from"`
	DateTo       string          `json:"date_to"`
	NumberOfDays decimal.Decimal `json:"number_of_days"`
	State        string          `json:"state"`
	Description  string          `json:"description"`
}

// LeaveRequestSummary описывает ранее поданную заявку сотрудника.
type LeaveRequestSummary struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	LeaveType    string          `json:"leave_type"`
	DateFrom     string          `json:"date_from"`
	DateTo       string          `json:"date_to"`
	NumberOfDays decimal.Decimal `json:"number_of_days"`
	State        string          `json:"state"`
	CreateDate   string          `json:"create_date"`
}

// NotificationLevel задаёт важность уведомления для пользователя.
type NotificationLevel string

const (
	NotificationError   NotificationLevel = "error"
	NotificationSuccess NotificationLevel = "success"
	NotificationInfo    NotificationLevel = "info"
)

// Notification описывает одно кратковременное уведомление для формы.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Kind    string            `json:"kind,omitempty"`
	Message string            `json:"message"`
}

// ParseDate разбирает дату в формате YYYY-MM-DD. Пустая строка означает «дата не выбрана».
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// DateOf отбрасывает время суток и возвращает календарную дату в UTC.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate форматирует дату для обмена с бэкендом; невыбранная дата даёт пустую строку.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
