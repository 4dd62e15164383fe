package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type seatHolder struct {
	Seat string `validate:"seat"`
}

type typeHolder struct {
	Type string `validate:"event_type"`
}

func TestSeatValidation(t *testing.T) {
	for _, ok := range []string{"1A", "12C", "101F"} {
		assert.NoError(t, Validate.Struct(seatHolder{Seat: ok}), ok)
	}
	for _, bad := range []string{"", "A", "12", "12a", "A12", "10000B"} {
		assert.Error(t, Validate.Struct(seatHolder{Seat: bad}), bad)
	}
}

func TestEventTypeValidation(t *testing.T) {
	assert.NoError(t, Validate.Struct(typeHolder{Type: "SeatReserved"}))
	assert.Error(t, Validate.Struct(typeHolder{Type: "seatReserved"}))
	assert.Error(t, Validate.Struct(typeHolder{Type: "Seat Reserved"}))
	assert.Error(t, Validate.Struct(typeHolder{Type: ""}))
}
