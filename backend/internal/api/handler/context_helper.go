package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"thunder-scheduler/backend/pkg/response"
)

// FieldError 参数校验失败的字段
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// MustGetUsername 取出 JWTAuth 注入的编辑账号，作为 created_by / updated_by 写入。
// 缺失时已写入 401 响应，调用方应直接 return。
func MustGetUsername(c *gin.Context) (string, bool) {
	if s := c.GetString("username"); s != "" {
		return s, true
	}
	response.Unauthorized(c, 10002, "未认证")
	return "", false
}

// bindError 统一的 10001 响应；validator 报错时附带失败字段，JSON 语法或类型错误只给出提示
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Namespace(), Rule: fe.Tag(), Param: fe.Param()})
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", fields)
}
