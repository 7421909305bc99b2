// Package bpm 根据动作时间戳估算节拍（每分钟动作数）
package bpm

import (
	"math"
	"sort"
)

// OutlierZScore 间隔的 Z 分数绝对值超过该值视为离群（停顿、漏检）
const OutlierZScore = 3.0

// Estimate 估算 BPM
// 相邻时间戳求间隔，按 Z 分数剔除离群间隔后取均值，BPM = 60 / 均值。
// 时间戳少于两个、剩余间隔为空或均值非正时无法确定，返回 false。
func Estimate(timestamps []float64) (float64, bool) {
	if len(timestamps) < 2 {
		return 0, false
	}

	sorted := append([]float64(nil), timestamps...)
	sort.Float64s(sorted)

	intervals := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals = append(intervals, sorted[i]-sorted[i-1])
	}

	kept := FilterOutliers(intervals, OutlierZScore)
	if len(kept) == 0 {
		return 0, false
	}
	m := mean(kept)
	if m <= 0 {
		return 0, false
	}
	return 60 / m, true
}

// minFilterSize 参与离群判断的最少间隔数
const minFilterSize = 3

// FilterOutliers 剔除 |z| > limit 的值
// 每个值的 Z 分数以其余值的均值和总体标准差计算：整体计算时单个离群值会抬高
// 标准差，n 个值的 |z| 最大只有 sqrt(n-1)，短会话中的一次停顿无法被识别。
// 值少于 3 个或整体标准差为 0 时不过滤。
func FilterOutliers(values []float64, limit float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	if len(values) < minFilterSize || stddev(values, mean(values)) == 0 {
		return append([]float64(nil), values...)
	}

	total := 0.0
	for _, v := range values {
		total += v
	}

	others := make([]float64, 0, len(values)-1)
	kept := make([]float64, 0, len(values))
	for i, v := range values {
		others = append(others[:0], values[:i]...)
		others = append(others, values[i+1:]...)

		m := (total - v) / float64(len(others))
		sd := stddev(others, m)
		if sd == 0 {
			// 其余值完全一致：与之相同则保留，否则视为无穷大的 Z 分数
			if v == m {
				kept = append(kept, v)
			}
			continue
		}
		if math.Abs((v-m)/sd) <= limit {
			kept = append(kept, v)
		}
	}
	return kept
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev 总体标准差
func stddev(values []float64, m float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}
