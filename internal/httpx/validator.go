package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var bbbIDPattern = regexp.MustCompile(`^\d{1,4}$`)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("bbb_id", validateBBBID)
}

func validateBBBID(fl validator.FieldLevel) bool {
	return bbbIDPattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

// ValidateStruct checks s against its validate tags and returns one
// ErrorDetail per failed field.
func ValidateStruct(s any) []ErrorDetail {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ErrorDetail{{Field: "", Message: err.Error()}}
	}

	var details []ErrorDetail
	for _, fe := range verrs {
		field := fe.Field()
		param := fe.Param()

		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "bbb_id":
			message = fmt.Sprintf("%s must be a BBB ID of up to four digits", field)
		case "max":
			message = fmt.Sprintf("%s must have at most %s entries", field, param)
		case "gte", "lte":
			message = fmt.Sprintf("%s must be between %s", field, param)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}

		details = append(details, ErrorDetail{
			Field:   strings.ToLower(field[:1]) + field[1:],
			Message: message,
		})
	}
	return details
}

// DecodeJSON decodes the request body into dst and validates it. An empty
// body leaves dst untouched. It writes the error response itself and
// reports whether the handler may continue.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			JSONError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", nil)
			return false
		}
	}
	if details := ValidateStruct(dst); len(details) > 0 {
		JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", details)
		return false
	}
	return true
}
