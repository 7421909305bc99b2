package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ExerciseType 训练类型（决定分析算法）
type ExerciseType int

const (
	ExerciseWalk       ExerciseType = iota // 0 行走
	ExerciseMarchThigh                     // 1 原地踏步（传感器在大腿）
	ExerciseMarchAnkle                     // 2 原地踏步（传感器在脚踝，信号取反）
	ExerciseSwing                          // 3 摆腿/双步
	ExerciseTandem                         // 4 前后脚重心转移
)

var exerciseNames = map[ExerciseType]string{
	ExerciseWalk:       "walk",
	ExerciseMarchThigh: "march",
	ExerciseMarchAnkle: "march_ankle",
	ExerciseSwing:      "swing",
	ExerciseTandem:     "tandem",
}

// String 训练名称
func (e ExerciseType) String() string {
	if name, ok := exerciseNames[e]; ok {
		return name
	}
	return fmt.Sprintf("exercise(%d)", int(e))
}

// Valid 是否为已知训练类型
func (e ExerciseType) Valid() bool {
	_, ok := exerciseNames[e]
	return ok
}

// TableKey 参数表中的键；两种踏步共用 "march"
func (e ExerciseType) TableKey() string {
	if e == ExerciseMarchAnkle {
		return "march"
	}
	return e.String()
}

// NeedsRoleNegotiation 是否需要区分前进腿/静止腿
func (e ExerciseType) NeedsRoleNegotiation() bool {
	return e == ExerciseSwing || e == ExerciseTandem
}

// ParseExercise 解析训练类型，支持数字或名称
func ParseExercise(s string) (ExerciseType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		e := ExerciseType(n)
		if !e.Valid() {
			return 0, fmt.Errorf("unknown exercise type: %d", n)
		}
		return e, nil
	}
	for e, name := range exerciseNames {
		if name == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown exercise type: %q", s)
}

// Leg 腿编号
type Leg int

const (
	LegLeft  Leg = 0
	LegRight Leg = 1
)

// String 腿名称
func (l Leg) String() string {
	switch l {
	case LegLeft:
		return "left"
	case LegRight:
		return "right"
	default:
		return fmt.Sprintf("leg(%d)", int(l))
	}
}

// Other 另一条腿
func (l Leg) Other() Leg {
	return 1 - l
}

// Role 摆腿/前后脚训练中的腿角色
type Role int

const (
	RoleUnknown    Role = iota
	RoleStepping        // 前进腿（抢到角色标记的一方）
	RoleStationary      // 静止腿
)

// String 角色名称
func (r Role) String() string {
	switch r {
	case RoleStepping:
		return "stepping"
	case RoleStationary:
		return "stationary"
	default:
		return "unknown"
	}
}
