package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate - общий экземпляр валидатора: HTTP запросы и payload событий
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("seat", validateSeat)
	_ = Validate.RegisterValidation("event_type", validateEventType)
}

// validateSeat проверяет номер места вида "12A": цифры ряда и буква кресла
func validateSeat(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if len(s) < 2 || len(s) > 4 {
		return false
	}
	letter := s[len(s)-1]
	if letter < 'A' || letter > 'Z' {
		return false
	}
	for _, r := range s[:len(s)-1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// validateEventType допускает только CamelCase идентификаторы без пробелов
func validateEventType(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
