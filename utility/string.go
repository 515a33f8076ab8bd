package utility

import (
	"strconv"

	"github.com/google/uuid"
)

// IntAsPrice converts an integer to a string like 10234 to 102.34
func IntAsPrice(i int) string {
	floatValue := float64(i) / 100.0
	return strconv.FormatFloat(floatValue, 'f', 2, 64)
}

func NewUUID() string {
	return uuid.New().String()
}
