package handler

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	telegramHandle = regexp.MustCompile(`^@?[A-Za-z0-9_]{5,32}$`)
	registerOnce   sync.Once
)

// registerValidators adds the custom binding tags used by request structs and
// makes field errors report JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("telegram", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || telegramHandle.MatchString(s)
		})
	})
}
