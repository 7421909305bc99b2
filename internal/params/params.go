package params

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"wisefido-gait/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	MinSensitivity = 1
	MaxSensitivity = 5
)

//go:embed default_params.json
var defaultTable []byte

// Entry 一个算法变体在某个灵敏度下的参数
type Entry struct {
	Displacement         float64 `yaml:"displacement"`
	ValidRange           float64 `yaml:"validRange"`
	MinThreshold         float64 `yaml:"min_threshold"`
	TimeThreshold        float64 `yaml:"time_threshold"`
	MinGradientThreshold float64 `yaml:"min_gradient_threshold"`
	GradientRatio        float64 `yaml:"gradient_ratio"`
	MaxGradient          float64 `yaml:"max_gradient"`
	Alpha                float64 `yaml:"alpha"`
	MaxWait              float64 `yaml:"max_wait"`

	// 摆腿/前后脚训练的三个子算法
	LegDetection *Entry `yaml:"leg_detection,omitempty"`
	StepLeg      *Entry `yaml:"step_leg,omitempty"`
	OtherLeg     *Entry `yaml:"other_leg,omitempty"`
}

// Table 参数表：exercise -> sensitivity -> Entry
type Table struct {
	entries map[string]map[int]Entry
}

// Parse 解析参数表（JSON，允许 // 与 /* */ 注释；YAML 同样可解析）
func Parse(data []byte) (*Table, error) {
	var raw map[string]map[string]Entry
	if err := yaml.Unmarshal(StripComments(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse parameter table: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("parameter table is empty")
	}

	t := &Table{entries: make(map[string]map[int]Entry, len(raw))}
	for exercise, levels := range raw {
		byLevel := make(map[int]Entry, len(levels))
		for key, entry := range levels {
			level, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil {
				return nil, fmt.Errorf("invalid sensitivity level %q for %s", key, exercise)
			}
			byLevel[level] = entry
		}
		t.entries[exercise] = byLevel
	}
	return t, nil
}

// Default 内置参数表
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded parameter table is invalid: %v", err))
	}
	return t
}

// Lookup 查询训练类型在指定灵敏度下的参数
func (t *Table) Lookup(exercise models.ExerciseType, sensitivity int) (Entry, error) {
	if sensitivity < MinSensitivity || sensitivity > MaxSensitivity {
		return Entry{}, fmt.Errorf("sensitivity level %d out of range [%d, %d]", sensitivity, MinSensitivity, MaxSensitivity)
	}
	levels, ok := t.entries[exercise.TableKey()]
	if !ok {
		return Entry{}, fmt.Errorf("no parameters for exercise %s", exercise)
	}
	entry, ok := levels[sensitivity]
	if !ok {
		return Entry{}, fmt.Errorf("no parameters for exercise %s at sensitivity %d", exercise, sensitivity)
	}
	if exercise.NeedsRoleNegotiation() {
		if entry.LegDetection == nil || entry.StepLeg == nil || entry.OtherLeg == nil {
			return Entry{}, fmt.Errorf("exercise %s at sensitivity %d requires leg_detection, step_leg and other_leg", exercise, sensitivity)
		}
	}
	return entry, nil
}

// Fetch 从配置服务下载参数表
func Fetch(ctx context.Context, url string, logger *zap.Logger) (*Table, error) {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")

	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch parameter table: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch parameter table: status %d", resp.StatusCode())
	}

	logger.Info("Fetched parameter table",
		zap.String("url", url),
		zap.Int("size", len(resp.Body())),
	)
	return Parse(resp.Body())
}

// Load 按来源加载参数表：空字符串使用内置表，http(s) 地址远程下载，否则读本地文件
func Load(ctx context.Context, source string, logger *zap.Logger) (*Table, error) {
	switch {
	case source == "":
		return Default(), nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return Fetch(ctx, source, logger)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read parameter table: %w", err)
		}
		return Parse(data)
	}
}

// StripComments 去掉字符串之外的 // 行注释和 /* */ 块注释，并把制表符换成空格
func StripComments(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))

	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out.WriteByte('\n')
			}
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i < len(data) && !(data[i] == '*' && i+1 < len(data) && data[i+1] == '/') {
				if data[i] == '\n' {
					out.WriteByte('\n')
				}
				i++
			}
			i++ // 跳过结尾的 '/'
		case c == '\t':
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
		}
	}
	return out.Bytes()
}
