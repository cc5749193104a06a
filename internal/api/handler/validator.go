package handler

import (
	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// echoValidator lets Echo call c.Validate(req) with the domain field rules,
// so request errors surface as VALIDATION_ERROR.
type echoValidator struct{}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
func NewValidator() *echoValidator {
	return &echoValidator{}
}

// Validate satisfies the echo.Validator interface.
func (echoValidator) Validate(i any) error {
	return domain.Validate(i)
}
