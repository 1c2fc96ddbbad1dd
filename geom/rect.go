package geom

import "math"

// Rect 是轴对齐矩形，Min 为左上角，Max 为右下角。
type Rect struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// XYWH 由左上角与宽高构造矩形。
func XYWH(x, y, w, h float64) Rect {
	return Rect{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}
}

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Corners 按左上、右上、右下、左下的顺序返回四个角点。
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.MinX, Y: r.MinY},
		{X: r.MaxX, Y: r.MinY},
		{X: r.MaxX, Y: r.MaxY},
		{X: r.MinX, Y: r.MaxY},
	}
}

// Union 返回同时包含 r 与 o 的最小矩形。
func (r Rect) Union(o Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Envelope 返回点集的轴对齐包络；空点集返回零矩形。
func Envelope(points ...Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	env := Rect{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, p := range points[1:] {
		env.MinX = math.Min(env.MinX, p.X)
		env.MinY = math.Min(env.MinY, p.Y)
		env.MaxX = math.Max(env.MaxX, p.X)
		env.MaxY = math.Max(env.MaxY, p.Y)
	}
	return env
}

// Transform 返回 r 经 m 变换后四个角点的包络。
func (r Rect) Transform(m Affine) Rect {
	c := r.Corners()
	return Envelope(m.Apply(c[0]), m.Apply(c[1]), m.Apply(c[2]), m.Apply(c[3]))
}

// Project 把局部矩形经有效变换映射到页面，再按 res（像素/pt）缩放，取包络。
// 无旋转时结果与 local 乘以 res 完全一致；有旋转或错切时包络会比真实字形宽松。
func Project(local Rect, m Affine, res float64) Rect {
	c := local.Corners()
	var pts [4]Point
	for i, p := range c {
		q := m.Apply(p)
		pts[i] = Point{X: q.X * res, Y: q.Y * res}
	}
	return Envelope(pts[:]...)
}
