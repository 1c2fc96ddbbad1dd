package extract

import (
	"context"
	"math"

	"github.com/ByLCY/wordbox/geom"
	"github.com/ByLCY/wordbox/layout"
	"github.com/ByLCY/wordbox/segment"
)

// Word 是一个通过过滤的片段，Local 位于所在文本帧的坐标系，
// Transform 是该帧的有效变换。
type Word struct {
	Page      int
	Index     int
	Text      string
	Kind      segment.Kind
	Local     geom.Rect
	Transform geom.Affine
}

// Project 把 Word 投影到像素空间。
func (w Word) Project(res float64) Record {
	return Record{
		Page: w.Page,
		Text: w.Text,
		Kind: w.Kind,
		BBox: geom.Project(w.Local, w.Transform, res),
	}
}

// Record 是输出中的一条记录，BBox 以像素为单位。
type Record struct {
	Page int
	Text string
	Kind segment.Kind
	BBox geom.Rect
}

type walker struct {
	ctx        context.Context
	index      int
	page       *layout.Page
	classifier *segment.Classifier
	filter     segment.Filter
	visited    []bool
	words      []Word
}

// Walk 按绘制顺序深度优先遍历一页，返回其中通过过滤的 Word。
// 帧树不合法时返回 *MalformedLayoutError，不返回部分结果。
func Walk(ctx context.Context, index int, page *layout.Page, opts ...Option) ([]Word, error) {
	o := NewOptions(opts...)
	return walkPage(ctx, index, page, o)
}

func walkPage(ctx context.Context, index int, page *layout.Page, o Options) ([]Word, error) {
	if page == nil || len(page.Frames) == 0 {
		return nil, nil
	}
	w := &walker{
		ctx:        ctx,
		index:      index,
		page:       page,
		classifier: o.classifier(),
		filter:     o.Filter,
		visited:    make([]bool, len(page.Frames)),
	}
	if err := w.visit(page.Root, -1, geom.Identity); err != nil {
		return nil, err
	}
	return w.words, nil
}

func (w *walker) visit(id, parent layout.FrameID, m geom.Affine) error {
	if int(id) < 0 || int(id) >= len(w.page.Frames) {
		return malformed(w.index, parent, -1, "子帧 %d 越界（共 %d 帧）", id, len(w.page.Frames))
	}
	if w.visited[id] {
		return malformed(w.index, id, -1, "帧被重复引用")
	}
	w.visited[id] = true

	f := &w.page.Frames[id]
	if !f.Transform.IsFinite() {
		return malformed(w.index, id, -1, "变换包含非有限值")
	}
	m = geom.Compose(m, f.Transform)

	switch f.Kind {
	case layout.FrameGroup:
		for _, c := range f.Children {
			if err := w.visit(c, id, m); err != nil {
				return err
			}
		}
		return nil
	case layout.FrameText:
		if len(f.Children) > 0 {
			return malformed(w.index, id, -1, "文本帧不能有子帧")
		}
		if err := w.ctx.Err(); err != nil {
			return err
		}
		return w.text(id, f.Text, m)
	case layout.FrameShape:
		if len(f.Children) > 0 {
			return malformed(w.index, id, -1, "图形帧不能有子帧")
		}
		return nil
	default:
		return malformed(w.index, id, -1, "未知帧类型 %s", f.Kind)
	}
}

func (w *walker) text(id layout.FrameID, run *layout.TextRun, m geom.Affine) error {
	if run == nil {
		return malformed(w.index, id, -1, "文本帧缺少文本")
	}
	if !finite(run.Ascent) || !finite(run.Descent) {
		return malformed(w.index, id, -1, "行度量包含非有限值")
	}
	if len(run.Glyphs) == 0 {
		return nil
	}
	clusters := make([]string, len(run.Glyphs))
	prevEnd := 0
	for i, g := range run.Glyphs {
		switch {
		case !finite(g.X):
			return malformed(w.index, id, i, "字形位置不是有限值")
		case !finite(g.Advance) || g.Advance < 0:
			return malformed(w.index, id, i, "字形步进 %v 无效", g.Advance)
		case g.Start < 0 || g.End < g.Start || g.End > len(run.Text):
			return malformed(w.index, id, i, "字形区间 [%d,%d) 超出文本长度 %d", g.Start, g.End, len(run.Text))
		case g.Start < prevEnd:
			return malformed(w.index, id, i, "字形区间 [%d,%d) 与前一字形重叠或乱序", g.Start, g.End)
		}
		prevEnd = g.End
		clusters[i] = run.Text[g.Start:g.End]
	}

	for _, seg := range w.filter.Apply(w.classifier.Split(clusters)) {
		glyphs := run.Glyphs[seg.Start:seg.End]
		local, ok := run.Box(glyphs)
		if !ok {
			continue
		}
		w.words = append(w.words, Word{
			Page:      w.index,
			Index:     len(w.words),
			Text:      run.Text[glyphs[0].Start:glyphs[len(glyphs)-1].End],
			Kind:      seg.Kind,
			Local:     local,
			Transform: m,
		})
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
