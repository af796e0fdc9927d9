package validation

import (
	"strings"

	"github.com/mmeshcher/leaveportal/internal/model"
)

// ClassifyCategory определяет вид отпуска по названию типа. Названия настраиваются
// администратором, поэтому сопоставление идёт по вхождению ключевого слова в порядке
// model.Categories; первое совпадение выигрывает.
func ClassifyCategory(name string) model.Category {
	normalized := strings.ToLower(name)
	normalized = strings.TrimSpace(strings.Replace(normalized, "leave", "", 1))

	for _, c := range model.Categories {
		if strings.Contains(normalized, string(c)) {
			return c
		}
	}
	return model.CategoryUnknown
}

// RequiresAttachment сообщает, нужен ли подтверждающий документ для вида отпуска.
func RequiresAttachment(c model.Category) bool {
	switch c {
	case model.CategoryCasual, model.CategoryAnnual, model.CategoryUnpaid:
		return false
	default:
		return true
	}
}
