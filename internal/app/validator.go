package app

import "github.com/mackenziemax/userhub/internal/validate"

// RequestValidator plugs the shared struct validator into Echo so handlers
// can call c.Validate. Failures are 400 validation AppErrors.
type RequestValidator struct{}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i any) error {
	return validate.Struct(i)
}
