package validator

// Validator is the facade the service layer depends on. It wraps the
// business validator and normalizes the nil/empty cases into error.
type Validator struct {
	*BusinessValidator
}

func NewValidator() *Validator {
	return &Validator{BusinessValidator: NewBusinessValidator()}
}

// Validate runs struct validation and returns nil when everything passes.
func (v *Validator) Validate(s interface{}) error {
	if errs := v.BusinessValidator.Validate(s); errs.HasErrors() {
		return errs
	}
	return nil
}
