package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cookbook/internal/validation"
)

var bindingOnce sync.Once

// RegisterBindingTags делает capfirst и password доступными в тегах binding.
func RegisterBindingTags() error {
	var err error
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			err = validation.Register(v)
		}
	})
	return err
}
