package transport

import "sync"

// RoleFlag 腿角色标记，每个会话最多从 false 变为 true 一次
type RoleFlag struct {
	mu  sync.Mutex
	set bool
}

// NewRoleFlag 创建未设置的角色标记
func NewRoleFlag() *RoleFlag {
	return &RoleFlag{}
}

// Set 比较并设置；只有真正完成 false→true 转换的调用返回 true
func (f *RoleFlag) Set(value bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set == value {
		return false
	}
	if !value {
		// 转换只能发生一次，不允许回退
		return false
	}
	f.set = true
	return true
}

// IsSet 是否已有一条腿被识别为前进腿
func (f *RoleFlag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}
