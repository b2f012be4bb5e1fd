package registry

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	identifierPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// validatorInstance configures and returns the shared validator used to
// check MethodSpec fields before a spec is admitted to the registry.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}
