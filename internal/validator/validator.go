package validator

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	models "github.com/atlasprotect/atlas/internal"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	v := validator.New()
	v.RegisterValidation("future_date", validateFutureDate)
	v.RegisterValidation("location", validateLocation)
	v.RegisterValidation("asset_category", validateAssetCategory)
	v.RegisterValidation("booking_status", validateBookingStatus)

	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func validateFutureDate(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return !date.Before(time.Now())
}

// a location is free text or coordinates; only emptiness is rejected
func validateLocation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateAssetCategory(fl validator.FieldLevel) bool {
	return models.AssetCategory(fl.Field().String()).Valid()
}

func validateBookingStatus(fl validator.FieldLevel) bool {
	return models.BookingStatus(fl.Field().String()).Valid()
}
