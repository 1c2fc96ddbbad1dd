// Package geom 提供布局树遍历所需的二维仿射变换与矩形包络计算。
//
// 坐标约定与页面一致：原点在左上角，y 轴向下，单位为 pt。
package geom

import "math"

// Point 是二维坐标点。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Affine 表示二维仿射变换：
//
//	x' = A*x + C*y + E
//	y' = B*x + D*y + F
type Affine struct {
	A, B, C, D, E, F float64
}

// Identity 是单位变换。
var Identity = Affine{A: 1, D: 1}

// Translate 返回平移变换。
func Translate(tx, ty float64) Affine {
	return Affine{A: 1, D: 1, E: tx, F: ty}
}

// Scale 返回缩放变换。
func Scale(sx, sy float64) Affine {
	return Affine{A: sx, D: sy}
}

// Rotate 返回旋转变换，deg 为角度。由于 y 轴向下，正角度在页面上表现为顺时针。
func Rotate(deg float64) Affine {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	// 常见角度直接给出精确值，避免 90° 旋转后残留 6e-17 之类的误差。
	switch math.Mod(deg, 360) {
	case 0:
		sin, cos = 0, 1
	case 90, -270:
		sin, cos = 1, 0
	case 180, -180:
		sin, cos = 0, -1
	case 270, -90:
		sin, cos = -1, 0
	}
	return Affine{A: cos, B: sin, C: -sin, D: cos}
}

// Skew 返回错切变换，degX/degY 分别为沿 x、y 方向的错切角度。
func Skew(degX, degY float64) Affine {
	return Affine{
		A: 1,
		B: math.Tan(degY * math.Pi / 180),
		C: math.Tan(degX * math.Pi / 180),
		D: 1,
	}
}

// Compose 返回 parent∘child：先应用 child，再应用 parent。
// 不可逆的矩阵原样参与运算，调用方只做正向投影。
func Compose(parent, child Affine) Affine {
	return Affine{
		A: parent.A*child.A + parent.C*child.B,
		B: parent.B*child.A + parent.D*child.B,
		C: parent.A*child.C + parent.C*child.D,
		D: parent.B*child.C + parent.D*child.D,
		E: parent.A*child.E + parent.C*child.F + parent.E,
		F: parent.B*child.E + parent.D*child.F + parent.F,
	}
}

// Then 等价于 Compose(m, child)，便于链式书写：Translate(..).Then(Rotate(..))。
func (m Affine) Then(child Affine) Affine { return Compose(m, child) }

// Apply 将变换作用于点。
func (m Affine) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// IsIdentity 判断是否为单位变换。
func (m Affine) IsIdentity() bool { return m == Identity }

// IsFinite 判断六个分量是否都是有限数。
func (m Affine) IsFinite() bool {
	for _, v := range [...]float64{m.A, m.B, m.C, m.D, m.E, m.F} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
