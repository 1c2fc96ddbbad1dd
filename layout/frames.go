package layout

import (
	"fmt"
	"math"

	"github.com/ByLCY/wordbox/geom"
)

// NewPage 创建只含根分组帧的空页面。
func NewPage(index int, width, height float64) *Page {
	p := &Page{Index: index, Width: width, Height: height}
	p.Root = p.push(Frame{Kind: FrameGroup, Transform: geom.Identity})
	return p
}

func (p *Page) push(f Frame) FrameID {
	p.Frames = append(p.Frames, f)
	return FrameID(len(p.Frames) - 1)
}

func (p *Page) attach(parent FrameID, f Frame) (FrameID, error) {
	if int(parent) < 0 || int(parent) >= len(p.Frames) {
		return 0, fmt.Errorf("父帧 %d 不存在", parent)
	}
	if p.Frames[parent].Kind != FrameGroup {
		return 0, fmt.Errorf("帧 %d 不是分组帧，不能添加子帧", parent)
	}
	id := p.push(f)
	p.Frames[parent].Children = append(p.Frames[parent].Children, id)
	return id, nil
}

// AddGroup 在 parent 下追加分组帧。
func (p *Page) AddGroup(parent FrameID, transform geom.Affine) (FrameID, error) {
	return p.attach(parent, Frame{Kind: FrameGroup, Transform: transform})
}

// AddText 在 parent 下追加文本帧。
func (p *Page) AddText(parent FrameID, transform geom.Affine, run *TextRun) (FrameID, error) {
	return p.attach(parent, Frame{Kind: FrameText, Transform: transform, Text: run})
}

// AddShape 在 parent 下追加图形帧。
func (p *Page) AddShape(parent FrameID, transform geom.Affine, shape *Shape) (FrameID, error) {
	return p.attach(parent, Frame{Kind: FrameShape, Transform: transform, Shape: shape})
}

// Graft 把 src 中 root 的整棵子树复制到 parent 下，root 复制为变换为 m 的分组帧。
func (p *Page) Graft(parent FrameID, m geom.Affine, src *Page, root FrameID) (FrameID, error) {
	if _, ok := src.Frame(root); !ok {
		return 0, fmt.Errorf("源帧 %d 不存在", root)
	}
	id, err := p.AddGroup(parent, m)
	if err != nil {
		return 0, err
	}
	var copyChildren func(dst, from FrameID)
	copyChildren = func(dst, from FrameID) {
		for _, c := range src.Frames[from].Children {
			f := src.Frames[c]
			f.Children = nil
			nid := p.push(f)
			p.Frames[dst].Children = append(p.Frames[dst].Children, nid)
			copyChildren(nid, c)
		}
	}
	copyChildren(id, root)
	return id, nil
}

// Frame 按下标取帧，越界时返回 false。
func (p *Page) Frame(id FrameID) (*Frame, bool) {
	if int(id) < 0 || int(id) >= len(p.Frames) {
		return nil, false
	}
	return &p.Frames[id], true
}

// Walk 按绘制顺序深度优先访问帧，fn 收到的是帧的有效变换。
// 调用方需保证帧树合法；需要校验的遍历见 extract 包。
func (p *Page) Walk(fn func(id FrameID, f *Frame, effective geom.Affine)) {
	var visit func(id FrameID, parent geom.Affine)
	visit = func(id FrameID, parent geom.Affine) {
		f, ok := p.Frame(id)
		if !ok {
			return
		}
		m := geom.Compose(parent, f.Transform)
		fn(id, f, m)
		for _, c := range f.Children {
			visit(c, m)
		}
	}
	visit(p.Root, geom.Identity)
}

// Box 返回 glyphs 在行坐标系中的外框：横向覆盖首个字形起点到最远字形终点，
// 纵向为 [-Ascent, +Descent]。glyphs 为空时返回 false。
func (r *TextRun) Box(glyphs []Glyph) (geom.Rect, bool) {
	if len(glyphs) == 0 {
		return geom.Rect{}, false
	}
	minX, maxX := glyphs[0].X, glyphs[0].X+glyphs[0].Advance
	for _, g := range glyphs[1:] {
		minX = math.Min(minX, g.X)
		maxX = math.Max(maxX, g.X+g.Advance)
	}
	return geom.Rect{MinX: minX, MinY: -r.Ascent, MaxX: maxX, MaxY: r.Descent}, true
}

// Extent 返回图形在自身坐标系中的外框。
func (s *Shape) Extent() geom.Rect {
	switch s.Kind {
	case ShapeLine:
		return geom.Envelope(geom.Point{}, geom.Point{X: s.DX, Y: s.DY})
	case ShapeCircle:
		return geom.Rect{MinX: -s.R, MinY: -s.R, MaxX: s.R, MaxY: s.R}
	default:
		return geom.XYWH(0, 0, s.Width, s.Height)
	}
}

// Bounds 返回 id 子树全部叶子在 id 坐标系中的包络，不含 id 自身的变换。
// 子树中没有可见内容时返回 false。
func (p *Page) Bounds(id FrameID) (geom.Rect, bool) {
	var (
		env   geom.Rect
		found bool
	)
	add := func(r geom.Rect) {
		if !found {
			env, found = r, true
			return
		}
		env = env.Union(r)
	}
	var visit func(id FrameID, m geom.Affine)
	visit = func(id FrameID, m geom.Affine) {
		f, ok := p.Frame(id)
		if !ok {
			return
		}
		switch f.Kind {
		case FrameText:
			if f.Text != nil {
				if r, ok := f.Text.Box(f.Text.Glyphs); ok {
					add(r.Transform(m))
				}
			}
		case FrameShape:
			if f.Shape != nil {
				add(f.Shape.Extent().Transform(m))
			}
		}
		for _, c := range f.Children {
			child, ok := p.Frame(c)
			if !ok {
				continue
			}
			visit(c, geom.Compose(m, child.Transform))
		}
	}
	visit(id, geom.Identity)
	return env, found
}
