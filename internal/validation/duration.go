package validation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/leaveportal/internal/model"
)

const secondsPerDay = 24 * 60 * 60

var two = decimal.NewFromInt(2)

// ComputeDuration возвращает продолжительность отпуска в днях включительно.
// Пока выбрана только одна дата, результат равен нулю без ошибки.
func ComputeDuration(from, to time.Time, halfDay bool) (decimal.Decimal, error) {
	if from.IsZero() || to.IsZero() {
		return decimal.Zero, nil
	}

	from, to = model.DateOf(from), model.DateOf(to)
	if to.Before(from) {
		return decimal.Zero, Reject(ErrInvalidRange, "The end date cannot be before the start date.")
	}

	// time.Duration ограничен ~292 годами, поэтому дни считаются по Unix-секундам.
	days := decimal.NewFromInt((to.Unix()-from.Unix())/secondsPerDay + 1)
	if halfDay {
		days = days.Div(two)
	}
	return days, nil
}

// AddWorkingDays идёт вперёд от start по одному дню и считает только будни,
// пока не наберёт n рабочих дней.
func AddWorkingDays(start time.Time, n int) time.Time {
	d := model.DateOf(start)
	for count := 0; count < n; {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return d
}
