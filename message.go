package conduit

import (
	"reflect"

	"github.com/goliatone/go-errors"
)

// Validator is implemented by messages that can check their own payload.
type Validator interface {
	Validate() error
}

func IsNilMessage(msg any) bool {
	if msg == nil {
		return true
	}

	v := reflect.ValueOf(msg)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// ValidateMessage rejects nil pointer messages and runs Validate when the
// message implements Validator.
func ValidateMessage[M any](msg M) error {
	if IsNilMessage(msg) {
		return errors.New("nil message pointer", errors.CategoryValidation).
			WithTextCode(ErrCodeInvalidMessage)
	}

	if m, ok := any(msg).(Validator); ok {
		if err := m.Validate(); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "message validation failed").
				WithTextCode(ErrCodeValidation)
		}
	}

	return nil
}
