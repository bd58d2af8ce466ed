package handler

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"thunder-scheduler/backend/internal/calendar"
)

// RegisterValidators 向 gin 的校验引擎注册自定义标签：
//   - weekday: 字段须为 MONDAY 至 FRIDAY
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("gin 校验引擎不是 validator/v10")
	}
	return v.RegisterValidation("weekday", validateWeekday)
}

func validateWeekday(fl validator.FieldLevel) bool {
	switch d := fl.Field().Interface().(type) {
	case calendar.Weekday:
		return d.Valid()
	case string:
		_, err := calendar.ParseWeekday(d)
		return err == nil
	default:
		return false
	}
}
