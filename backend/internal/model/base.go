package model

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
)

// ── 节次数组 ──

// IntArray 节次列表，落库为 PostgreSQL int[]。
// 数组文本格式的编解码交给 lib/pq，这里只做 int64 与 int 的换算。
type IntArray []int

func (a *IntArray) Scan(src interface{}) error {
	var raw pq.Int64Array
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("节次数组解析失败: %w", err)
	}
	if raw == nil {
		*a = nil
		return nil
	}
	out := make(IntArray, len(raw))
	for i, n := range raw {
		out[i] = int(n)
	}
	*a = out
	return nil
}

func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	raw := make(pq.Int64Array, len(a))
	for i, n := range a {
		raw[i] = int64(n)
	}
	return raw.Value()
}

// Normalize 去重并升序，写库前调用
func (a IntArray) Normalize() IntArray {
	if a == nil {
		return IntArray{}
	}
	seen := make(map[int]bool, len(a))
	out := make(IntArray, 0, len(a))
	for _, n := range a {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// BaseModel 通用审计字段（所有业务模型嵌入），操作人记录编辑账号用户名
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy *string   `gorm:"type:varchar(64)"                   json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy *string   `gorm:"type:varchar(64)"                   json:"updated_by,omitempty"`
}

// VersionedModel 支持乐观锁的模型
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1" json:"version"`
}
