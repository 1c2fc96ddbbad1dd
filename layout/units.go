package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// 长度与行高的解析。文档内部统一使用 pt，无单位数值同样按 pt 处理。

// Unit 记录 DSL 中长度值书写时的单位。
type Unit int

const (
	UnitNone    Unit = iota // 无单位，按 pt 处理
	UnitPT                  // points
	UnitMM                  // millimeters
	UnitCM                  // centimeters
	UnitIN                  // inches
	UnitPercent             // 相对参考长度的百分比
)

// pt 与 mm 的换算。
const (
	PtToMm = 25.4 / 72
	MmToPt = 72 / 25.4
)

func (u Unit) String() string {
	switch u {
	case UnitPT:
		return "pt"
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPercent:
		return "%"
	default:
		return ""
	}
}

// Length 保留数值与原始单位。
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Points 把长度换算为 pt。百分比无法脱离参考长度换算，按 0 处理。
func (l Length) Points() float64 {
	switch l.Unit {
	case UnitMM:
		return l.Value * MmToPt
	case UnitCM:
		return l.Value * 10 * MmToPt
	case UnitIN:
		return l.Value * 72
	case UnitPercent:
		return 0
	default:
		return l.Value
	}
}

// Resolve 换算为 pt，百分比相对 reference 计算。
func (l Length) Resolve(reference float64) float64 {
	if l.Unit == UnitPercent {
		return reference * l.Value / 100
	}
	return l.Points()
}

var unitSuffixes = []struct {
	s string
	u Unit
}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}, {"%", UnitPercent}}

// ParseLength 解析 "12pt"、"18mm"、"50%"、"-3" 等写法。
func ParseLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, fmt.Errorf("长度为空")
	}
	unit := UnitNone
	num := v
	for _, suf := range unitSuffixes {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("无法解析长度 %q", value)
	}
	return Length{Value: f, Unit: unit}, nil
}

// LineHeightKind 区分倍数行高与绝对行高。
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec 保留作者意图：倍数（1.2x）或绝对长度（18pt）。
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// ParseLineHeight 解析 line-height 属性；空值返回默认的 1.4 倍。
func ParseLineHeight(value string) (LineHeightSpec, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "normal" {
		return LineHeightSpec{Kind: LineHeightFactor, Factor: defaultLineHeight}, nil
	}
	if strings.HasSuffix(v, "x") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64)
		if err != nil || f <= 0 {
			return LineHeightSpec{}, fmt.Errorf("无法解析行高倍数 %q", value)
		}
		return LineHeightSpec{Kind: LineHeightFactor, Factor: f}, nil
	}
	l, err := ParseLength(v)
	if err != nil {
		return LineHeightSpec{}, err
	}
	if l.Unit == UnitPercent {
		return LineHeightSpec{Kind: LineHeightFactor, Factor: l.Value / 100}, nil
	}
	if l.Points() <= 0 {
		return LineHeightSpec{}, fmt.Errorf("行高必须为正数: %q", value)
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, nil
}

// Resolve 按字号（pt）计算绝对行高。
func (s LineHeightSpec) Resolve(fontSize float64) float64 {
	switch s.Kind {
	case LineHeightAbsolute:
		return s.Len.Points()
	default:
		if s.Factor <= 0 {
			return fontSize * defaultLineHeight
		}
		return fontSize * s.Factor
	}
}
