package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
	"github.com/mdfe/backend/internal/interfaces/http/dto"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// RequestIDHeader carries the request ID in and out
const RequestIDHeader = "X-Request-ID"

var setupOnce sync.Once

// fiscalValidators are the binding tags for Brazilian fiscal identifiers.
// Each delegates to the value object constructor so binding and domain
// agree on what is valid.
var fiscalValidators = map[string]func(string) bool{
	"cnpj": func(s string) bool {
		_, err := valueobject.NewCNPJ(s)
		return err == nil
	},
	"cpf": func(s string) bool {
		_, err := valueobject.NewCPF(s)
		return err == nil
	},
	"taxdoc": func(s string) bool {
		_, err := valueobject.NewTaxDocument(s)
		return err == nil
	},
	"uf": func(s string) bool {
		_, err := valueobject.ParseUFAllowExterior(s)
		return err == nil
	},
	"plate": func(s string) bool {
		_, err := valueobject.NewPlate(s)
		return err == nil
	},
	"accesskey": func(s string) bool {
		_, err := valueobject.ParseAccessKey(s)
		return err == nil
	},
}

// SetupValidator names fields after their JSON tags and registers the
// fiscal validators. Safe to call more than once.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		for tag, check := range fiscalValidators {
			check := check
			_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return check(fl.Field().String())
			})
		}
	})
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	} else {
		return dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Malformed request body", requestID)
	}

	return dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	)
}

// HandleValidationError returns a validation error response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

// GetRequestID returns the request ID set by RequestID, or the inbound header
func GetRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDHeader)
}

// getValidationMessage returns a human-readable validation message
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "numeric":
		return "Must be numeric"
	case "cnpj":
		return "Invalid CNPJ"
	case "cpf":
		return "Invalid CPF"
	case "taxdoc":
		return "Must be a valid CPF or CNPJ"
	case "uf":
		return "Invalid UF"
	case "plate":
		return "Invalid plate, expected AAA9999 or AAA9A99"
	case "accesskey":
		return "Invalid access key"
	default:
		return "Invalid value"
	}
}
