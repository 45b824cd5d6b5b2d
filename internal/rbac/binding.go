package rbac

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidation adds the "role" tag to gin's validator so request
// structs can declare `binding:"omitempty,role"`.
func RegisterValidation() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("rbac: unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := ParseRole(fl.Field().String())
		return err == nil
	})
}
