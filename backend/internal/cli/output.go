package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// 退出码
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // 校验未通过、调课被回滚
	ExitCommandError = 2 // 参数、配置或网络错误
)

// ExitError 带退出码的错误
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError 创建带退出码的错误
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError 包装已有错误
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode 提取退出码，非 ExitError 时为 ExitFailure
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter 按 text / json 输出结果
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse json 模式下的输出结构
type CLIResponse struct {
	Status string      `json:"status"` // ok | error
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Emit json 模式输出 data；text 模式调用 text 渲染
func (f *OutputFormatter) Emit(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}
