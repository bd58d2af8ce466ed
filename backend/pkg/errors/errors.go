// Package errors 仓储层与业务层共用的错误
package errors

import "errors"

// ErrOptimisticLock 带版本条件的写入未命中：记录已被其他写入者修改。
// 业务层据此返回版本冲突，不做重试。
var ErrOptimisticLock = errors.New("版本冲突：记录已被其他写入修改")
