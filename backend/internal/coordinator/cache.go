package coordinator

import (
	"sync"

	"thunder-scheduler/backend/internal/calendar"
)

// Cache 本地排课缓存，界面据此渲染。乐观写入直接作用于此。
type Cache struct {
	mu          sync.RWMutex
	assignments []calendar.Assignment
}

// NewCache 以初始排课记录创建缓存
func NewCache(initial []calendar.Assignment) *Cache {
	return &Cache{assignments: calendar.CloneAssignments(initial)}
}

// Assignments 返回当前缓存的副本
func (c *Cache) Assignments() []calendar.Assignment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calendar.CloneAssignments(c.assignments)
}

// find 找到与 target 完全相同的记录下标
func (c *Cache) find(target calendar.Assignment) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, a := range c.assignments {
		if a == target {
			return i
		}
	}
	return -1
}

// replaceAt 原位替换一条记录并返回替换后的整套副本
func (c *Cache) replaceAt(i int, a calendar.Assignment) []calendar.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignments[i] = a
	return calendar.CloneAssignments(c.assignments)
}

// restore 整体恢复为给定快照
func (c *Cache) restore(snapshot []calendar.Assignment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignments = calendar.CloneAssignments(snapshot)
}
