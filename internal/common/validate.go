package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator. Field names in errors use the json tag.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// DecodeJSON reads the request body into dst and validates it.
// Failures come back as a 400 AppError whose details list the offending fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return NewAppError("BAD_REQUEST", "request body is required", http.StatusBadRequest, err)
		}
		return NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err)
	}
	if err := Validator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			appErr := NewAppError("VALIDATION_FAILED", "request validation failed", http.StatusBadRequest, err)
			appErr.Details = fields
			return appErr
		}
		return NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err)
	}
	return nil
}
