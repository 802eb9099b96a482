// Package grade 提供成绩换算与统计的纯函数。
//
// 约定：所有成绩一律以 [0,100] 的百分比存储，gradedecimals 仅在
// 展示/换算时生效，绝不截断已存储的原始百分比。
package grade

import (
	"fmt"
	"math"
	"sort"
)

// Epsilon 成绩比较的浮点容差。
// 成绩以定点精度的百分比存储，不能用位相等判断差异。
const Epsilon = 1e-5

// OutOfRangeError 百分比越界错误（不静默截断，直接报错）
type OutOfRangeError struct {
	Percent float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("百分比 %v 超出 [0,100] 范围", e.Percent)
}

// PercentToValue 将百分比换算为满分为 total 的实际分值。
// percent 越界时返回 OutOfRangeError。
func PercentToValue(percent, total float64) (float64, error) {
	if percent < 0 || percent > 100 {
		return 0, &OutOfRangeError{Percent: percent}
	}
	return total * percent / 100, nil
}

// RawGradeValue 将教师录入的实际分值换算为存储用百分比。
// nil 透传；负值与超上限值分别钳制到 0 / max。
func RawGradeValue(value *float64, max float64) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	if v < 0 {
		v = 0
	} else if v > max {
		v = max
	}
	if max <= 0 {
		zero := 0.0
		return &zero
	}
	p := v / max * 100
	return &p
}

// ValueFromPercent 将存储百分比换算为满分为 max 的展示分值，
// 按 decimals 位小数四舍五入。仅用于展示，不回写存储。
func ValueFromPercent(percent *float64, max float64, decimals int) *float64 {
	if percent == nil {
		return nil
	}
	v := Round(*percent/100*max, decimals)
	return &v
}

// Round 四舍五入到 decimals 位小数
func Round(x float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(x*shift) / shift
}

// Equal 判断两个成绩在容差内相等
func Equal(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Different 判断两个成绩在容差内不同
func Different(a, b float64) bool {
	return !Equal(a, b)
}

// PtrDifferent nil 感知的指针成绩比较：一方为 nil 另一方非 nil 视为不同
func PtrDifferent(a, b *float64) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	return Different(*a, *b)
}

// GCD 最大公约数（欧几里得递归）
func GCD(a, b int) int {
	if b == 0 {
		return a
	}
	return GCD(b, a%b)
}

// LCM 最小公倍数，用于报表行合并的布局计算
func LCM(a, b int) int {
	return a / GCD(a, b) * b
}

// Median 中位数：偶数个取中间两数的平均值
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// PopulationStdDev 总体标准差（除以 N，而非 N-1）
func PopulationStdDev(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}
