package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"thunder-scheduler/backend/config"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger(&config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("NewLogger(%s) 失败: %v", format, err)
		}
		if !l.Core().Enabled(zap.DebugLevel) {
			t.Errorf("format=%s 期望启用 debug 级别", format)
		}
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "verbose"}); err == nil {
		t.Error("无效的日志级别应返回错误")
	}
}

func TestContextLogger(t *testing.T) {
	fallback := zap.NewNop()
	if FromContext(context.Background(), fallback) != fallback {
		t.Error("ctx 中无日志器时应返回 fallback")
	}

	scoped := zap.NewExample().With(zap.String("request_id", "r-1"))
	ctx := WithContext(context.Background(), scoped)
	if FromContext(ctx, fallback) != scoped {
		t.Error("期望取回放入 ctx 的日志器")
	}
}
