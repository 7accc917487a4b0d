package scheduling

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"github.com/dentalhub/dentalhub/internal/platform/apperr"
)

// phoneRegions are tried in order for numbers written without a country
// code.
var phoneRegions = []string{"US", "GB"}

// NormalizePhone returns phone in E.164 form, or "" when it is not a valid
// number in any supported region.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	for _, region := range phoneRegions {
		num, err := phonenumbers.Parse(phone, region)
		if err == nil && phonenumbers.IsValidNumber(num) {
			return phonenumbers.Format(num, phonenumbers.E164)
		}
	}
	return ""
}

// Validator checks booking requests and business hours.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		_, err := ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return NormalizePhone(fl.Field().String()) != ""
	})
	return &Validator{validate: v}
}

// ValidateBooking returns a validation apperr for the first bad field.
func (v *Validator) ValidateBooking(req *BookingRequest) error {
	return v.translate(v.validate.Struct(req), "")
}

// ValidateHours accepts only weekday keys, and for open days intervals
// whose ends parse with from before to. Overlapping intervals are allowed.
func (v *Validator) ValidateHours(hours WeeklyBusinessHours) error {
	for name, day := range hours {
		if !IsWeekday(name) {
			return apperr.Validation("businessHours", fmt.Sprintf("unknown weekday %q", name))
		}
		if day.Closed {
			continue
		}
		if err := v.translate(v.validate.Struct(day), "businessHours."+name+"."); err != nil {
			return err
		}
		for i, iv := range day.Intervals {
			if _, _, err := iv.Span(); err != nil {
				return apperr.Validation(fmt.Sprintf("businessHours.%s.intervals[%d]", name, i), err.Error())
			}
		}
	}
	return nil
}

func (v *Validator) translate(err error, prefix string) error {
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return apperr.Wrap(apperr.KindValidation, "invalid request", err)
	}
	fe := errs[0]
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	field := prefix + ns
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "uuid":
		msg = fmt.Sprintf("%s must be a valid id", fe.Field())
	case "datetime":
		msg = fmt.Sprintf("%s must be a date in yyyy-MM-dd format", fe.Field())
	case "timeofday":
		msg = fmt.Sprintf("%s must be a time in HH:mm or hh:mm AM/PM format", fe.Field())
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "phone":
		msg = fmt.Sprintf("%s must be a valid phone number", fe.Field())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return apperr.Validation(field, msg)
}
