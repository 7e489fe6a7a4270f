package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"ai-paperchat-be/pkg/rag/fault"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest checks struct tags and reports every failing field in one
// VALIDATION fault so clients can fix a request in a single round trip.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fault.Wrap(fault.KindValidation, "invalid request", err)
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fault.New(fault.KindValidation, strings.Join(parts, "; "))
}
