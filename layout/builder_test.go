package layout

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ByLCY/wordbox/geom"
)

// stubTypesetter 是测试用的最小实现：不折行，每个字符步进 0.5 字号，
// 上升 0.8 字号、下降 0.2 字号。避免在 layout 测试中引入真实字体。
type stubTypesetter struct{}

func (s *stubTypesetter) LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error) {
	var lines []TextLine
	for _, hard := range strings.Split(content, "\n") {
		ln := TextLine{
			Content: hard,
			Ascent:  0.8 * fontSize,
			Descent: 0.2 * fontSize,
			Height:  fontSize,
		}
		x := 0.0
		for i, r := range hard {
			adv := 0.5 * fontSize
			ln.Glyphs = append(ln.Glyphs, Glyph{Start: i, End: i + len(string(r)), X: x, Advance: adv})
			x += adv
		}
		ln.Width = x
		lines = append(lines, ln)
	}
	// 不设置 GapBefore（保持 0），由 composeText 根据默认 leading 回填。
	return lines, nil
}

func compileStub(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Compile("test.wb", src, BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("编译失败: %v", err)
	}
	return doc
}

type placedText struct {
	text string
	m    geom.Affine
}

func pageTexts(p *Page) []placedText {
	var out []placedText
	p.Walk(func(_ FrameID, f *Frame, m geom.Affine) {
		if f.Kind == FrameText {
			out = append(out, placedText{text: f.Text.Text, m: m})
		}
	})
	return out
}

func eq(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestTextFramesOnBaseline(t *testing.T) {
	doc := compileStub(t, `doc T v1 { page A4 margin 10mm { flow { text size 10pt { "Hello" } } } }`)
	if len(doc.Pages) != 1 {
		t.Fatalf("期望 1 页，实际 %d", len(doc.Pages))
	}
	p := &doc.Pages[0]
	if !eq(p.Width, 210*MmToPt) || !eq(p.Height, 297*MmToPt) {
		t.Fatalf("A4 尺寸错误: %gx%g", p.Width, p.Height)
	}
	texts := pageTexts(p)
	if len(texts) != 1 || texts[0].text != "Hello" {
		t.Fatalf("期望单个文本帧 Hello，实际 %+v", texts)
	}
	m := texts[0].m
	margin := 10 * MmToPt
	// 行原点位于基线：上边距 + 上升高度
	if !eq(m.E, margin) || !eq(m.F, margin+8) {
		t.Fatalf("文本帧位置错误: E=%g F=%g", m.E, m.F)
	}
	if !eq(m.A, 1) || !eq(m.D, 1) || m.B != 0 || m.C != 0 {
		t.Fatalf("未旋转文本的线性部分应为单位阵: %+v", m)
	}
}

// TestLineSpacing 断言相邻行基线间距 = 行高（默认 1.4 倍字号）。
func TestLineSpacing(t *testing.T) {
	doc := compileStub(t, `doc T v1 { page A4 { text size 10pt { "a\nb\n\nc" } } }`)
	texts := pageTexts(&doc.Pages[0])
	if len(texts) != 3 {
		t.Fatalf("空行不应生成文本帧，期望 3 个，实际 %d", len(texts))
	}
	if d := texts[1].m.F - texts[0].m.F; !eq(d, 14) {
		t.Fatalf("行距期望 14pt，实际 %g", d)
	}
	if d := texts[2].m.F - texts[1].m.F; !eq(d, 28) {
		t.Fatalf("空行仍应占据行高，期望 28pt，实际 %g", d)
	}

	doc = compileStub(t, `doc T v1 { page A4 { text size 10pt line-height 20pt { "a\nb" } } }`)
	texts = pageTexts(&doc.Pages[0])
	if d := texts[1].m.F - texts[0].m.F; !eq(d, 20) {
		t.Fatalf("绝对行高期望 20pt，实际 %g", d)
	}
}

// TestResolveMarginVariants 验证 margin 参数支持 1、2、3、4+ 个值的语义。
func TestResolveMarginVariants(t *testing.T) {
	get := func(spec string) Margin {
		doc := compileStub(t, "doc T v1 { page "+spec+" { flow { text { \"x\" } } } }")
		return doc.Pages[0].Margin
	}
	mm := func(v float64) float64 { return v * MmToPt }

	m1 := get("A4 portrait margin 10mm")
	if !(eq(m1.Top, mm(10)) && eq(m1.Right, mm(10)) && eq(m1.Bottom, mm(10)) && eq(m1.Left, mm(10))) {
		t.Fatalf("1 值语义错误: %+v", m1)
	}
	m2 := get("A4 portrait margin 10mm 5mm")
	if !(eq(m2.Top, mm(10)) && eq(m2.Bottom, mm(10)) && eq(m2.Left, mm(5)) && eq(m2.Right, mm(5))) {
		t.Fatalf("2 值语义错误: %+v", m2)
	}
	m3 := get("A4 portrait margin 12mm 8mm 6mm")
	if !(eq(m3.Top, mm(12)) && eq(m3.Right, mm(8)) && eq(m3.Bottom, mm(6)) && eq(m3.Left, 0)) {
		t.Fatalf("3 值语义错误: %+v", m3)
	}
	m4 := get("A4 portrait margin 1cm 5mm 2cm 36pt")
	if !(eq(m4.Top, mm(10)) && eq(m4.Right, mm(5)) && eq(m4.Bottom, mm(20)) && eq(m4.Left, 36)) {
		t.Fatalf("4 值语义错误: %+v", m4)
	}
	m5 := get("A4 portrait margin 1mm 2mm 3mm 4mm 999mm 888mm")
	if !(eq(m5.Top, mm(1)) && eq(m5.Right, mm(2)) && eq(m5.Bottom, mm(3)) && eq(m5.Left, mm(4))) {
		t.Fatalf(">4 值应忽略多余: %+v", m5)
	}
}

func TestTextAlign(t *testing.T) {
	const header = `doc T v1 { page A4 margin 0 { `
	cases := []struct {
		name string
		body string
		want func(contentW float64) float64
	}{
		{"explicit right", `flow { text size 10pt align right { "Hello" } }`, func(w float64) float64 { return w - 25 }},
		{"inherit center", `flow align center { text size 10pt { "Hello" } }`, func(w float64) float64 { return (w - 25) / 2 }},
		{"alias end", `flow { text size 10pt align end { "Hello" } }`, func(w float64) float64 { return w - 25 }},
		{"default left", `flow { text size 10pt { "Hello" } }`, func(float64) float64 { return 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			doc := compileStub(t, header+c.body+" } }")
			p := &doc.Pages[0]
			texts := pageTexts(p)
			if len(texts) != 1 {
				t.Fatalf("期望 1 个文本帧，实际 %d", len(texts))
			}
			if got, want := texts[0].m.E, c.want(p.Width); !eq(got, want) {
				t.Fatalf("水平位置错误: got=%g want=%g", got, want)
			}
		})
	}
}

// TestGroupRotation 验证旋转分组：内容包络的左上角落在光标处，字形沿 y 轴排列。
func TestGroupRotation(t *testing.T) {
	doc := compileStub(t, `doc T v1 { page A4 margin 0 {
  group rotate 90 x 20pt {
    text size 10pt { "Hi" }
  }
  text size 10pt { "after" }
} }`)
	p := &doc.Pages[0]
	texts := pageTexts(p)
	if len(texts) != 2 {
		t.Fatalf("期望 2 个文本帧，实际 %d", len(texts))
	}
	m := texts[0].m
	if !eq(m.A, 0) || !eq(m.B, 1) || !eq(m.C, -1) || !eq(m.D, 0) {
		t.Fatalf("旋转 90° 的线性部分错误: %+v", m)
	}
	// "Hi" 的局部外框 [0,10]x[-8,2]，旋转后包络宽 10、高 10。
	box := geom.Rect{MinX: 0, MinY: -8, MaxX: 10, MaxY: 2}.Transform(m)
	if !eq(box.MinX, 20) || !eq(box.MinY, 0) || !eq(box.Width(), 10) || !eq(box.Height(), 10) {
		t.Fatalf("旋转后包络错误: %+v", box)
	}
	// 光标随包络高度下移，后续文本在其下方。
	if after := texts[1].m.F; !eq(after, 10+blockSpacing+8) {
		t.Fatalf("分组后的文本位置错误: %g", after)
	}
}

func TestGroupNegativeAngleAndScale(t *testing.T) {
	doc := compileStub(t, `doc T v1 { page A4 margin 0 { group rotate -90 scale 2 { text size 10pt { "Hi" } } } }`)
	m := pageTexts(&doc.Pages[0])[0].m
	if !eq(m.A, 0) || !eq(m.B, -2) || !eq(m.C, 2) || !eq(m.D, 0) {
		t.Fatalf("rotate -90 scale 2 的线性部分错误: %+v", m)
	}
}

type countingTypesetter struct {
	stubTypesetter
	calls int
}

func (c *countingTypesetter) LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error) {
	c.calls++
	return c.stubTypesetter.LayoutLines(content, width, font, fontSize, lineHeight, wrap)
}

// 嵌套分组每段文本只排版一次，帧树中也只出现一次。
func TestNestedGroupsLaidOutOnce(t *testing.T) {
	ts := &countingTypesetter{}
	doc, err := Compile("test.wb", `doc T v1 { page A4 margin 0 {
  group rotate 90 { group scale 2 { group x 5pt { group rotate -90 {
    text size 10pt { "deep" }
  } } } }
} }`, BuildOptions{Typesetter: ts})
	if err != nil {
		t.Fatalf("编译失败: %v", err)
	}
	if ts.calls != 1 {
		t.Fatalf("文本应只排版一次，实际 %d 次", ts.calls)
	}
	texts := pageTexts(&doc.Pages[0])
	if len(texts) != 1 || texts[0].text != "deep" {
		t.Fatalf("期望 1 个文本帧，实际 %+v", texts)
	}
	// 两次旋转抵消，剩下 2 倍缩放。
	if m := texts[0].m; !eq(m.A, 2) || !eq(m.B, 0) || !eq(m.C, 0) || !eq(m.D, 2) {
		t.Fatalf("嵌套变换错误: %+v", m)
	}
	p := &doc.Pages[0]
	seen := make([]bool, len(p.Frames))
	p.Walk(func(id FrameID, _ *Frame, _ geom.Affine) {
		if seen[id] {
			t.Fatalf("帧 %d 被访问两次", id)
		}
		seen[id] = true
	})
}

func TestGraftCopiesSubtree(t *testing.T) {
	src := NewPage(0, 100, 100)
	g, _ := src.AddGroup(src.Root, geom.Translate(1, 2))
	run := &TextRun{Text: "x", Ascent: 1, Glyphs: []Glyph{{Start: 0, End: 1, Advance: 1}}}
	if _, err := src.AddText(g, geom.Identity, run); err != nil {
		t.Fatalf("添加文本帧失败: %v", err)
	}
	dst := NewPage(0, 100, 100)
	id, err := dst.Graft(dst.Root, geom.Translate(10, 0), src, src.Root)
	if err != nil {
		t.Fatalf("Graft 失败: %v", err)
	}
	if len(dst.Frames) != 4 || dst.Frames[id].Kind != FrameGroup {
		t.Fatalf("复制后的帧数错误: %+v", dst.Frames)
	}
	texts := pageTexts(dst)
	if len(texts) != 1 || !eq(texts[0].m.E, 11) || !eq(texts[0].m.F, 2) {
		t.Fatalf("复制后的变换错误: %+v", texts)
	}
	if _, err := dst.Graft(dst.Root, geom.Identity, src, FrameID(99)); err == nil {
		t.Fatalf("源帧不存在时应报错")
	}
}

func TestPageBreaks(t *testing.T) {
	doc := compileStub(t, `doc T v1 { page A5 {
  text { "one" }
  pagebreak
  text { "two" }
} }`)
	if len(doc.Pages) != 2 {
		t.Fatalf("pagebreak 后期望 2 页，实际 %d", len(doc.Pages))
	}
	for i, want := range []string{"one", "two"} {
		p := &doc.Pages[i]
		if p.Index != i {
			t.Fatalf("第 %d 页序号错误: %d", i, p.Index)
		}
		texts := pageTexts(p)
		if len(texts) != 1 || texts[0].text != want {
			t.Fatalf("第 %d 页内容错误: %+v", i, texts)
		}
	}

	// 内容溢出时自动续页
	var b strings.Builder
	b.WriteString(`doc T v1 { page A5 { flow {`)
	for i := 0; i < 60; i++ {
		b.WriteString(` text size 20pt { "line" }`)
	}
	b.WriteString(` } } }`)
	doc = compileStub(t, b.String())
	if len(doc.Pages) < 2 {
		t.Fatalf("溢出内容应续排到新页，实际 %d 页", len(doc.Pages))
	}
	total := 0
	for i := range doc.Pages {
		p := &doc.Pages[i]
		for _, tx := range pageTexts(p) {
			if tx.m.F > p.Height-p.Margin.Bottom {
				t.Fatalf("第 %d 页文本越过内容区底部: %g", i, tx.m.F)
			}
			total++
		}
	}
	if total != 60 {
		t.Fatalf("期望 60 个文本帧，实际 %d", total)
	}
}

func TestHeaderFooterRepeated(t *testing.T) {
	doc := compileStub(t, `doc T v1 { page A4 margin 20mm {
  header height 40pt { text size 10pt { "HEAD" } }
  footer { text size 10pt { "FOOT" } }
  text { "body 1" }
  pagebreak
  text { "body 2" }
} }`)
	if len(doc.Pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(doc.Pages))
	}
	for i := range doc.Pages {
		p := &doc.Pages[i]
		var head, foot *placedText
		texts := pageTexts(p)
		for j := range texts {
			switch texts[j].text {
			case "HEAD":
				head = &texts[j]
			case "FOOT":
				foot = &texts[j]
			}
		}
		if head == nil || foot == nil {
			t.Fatalf("第 %d 页缺少页眉或页脚: %+v", i, texts)
		}
		// 页眉内容底部贴合 40pt 区域底边：基线 = 40 - 10 + 8
		if !eq(head.m.F, 38) {
			t.Fatalf("页眉基线错误: %g", head.m.F)
		}
		// 页脚区域高度等于内容高度，从页面底部向上占用。
		if !eq(foot.m.F, p.Height-10+8) {
			t.Fatalf("页脚基线错误: %g", foot.m.F)
		}
		// 页眉默认居中
		if !eq(head.m.E, (p.Width-20)/2) {
			t.Fatalf("页眉应居中: %g", head.m.E)
		}
	}
}

func TestTableFrames(t *testing.T) {
	doc := compileStub(t, `doc T v1 { page A4 margin 0 {
  table width 200pt {
    header { cell { "Name" } cell { "Qty" } }
    row { cell { "apple" } cell { "3" } }
  }
} }`)
	p := &doc.Pages[0]
	var rects int
	p.Walk(func(_ FrameID, f *Frame, _ geom.Affine) {
		if f.Kind == FrameShape && f.Shape.Kind == ShapeRect {
			rects++
			if !eq(f.Shape.Width, 100) {
				t.Fatalf("列宽错误: %g", f.Shape.Width)
			}
		}
	})
	if rects != 4 {
		t.Fatalf("期望 4 个单元格边框，实际 %d", rects)
	}
	var names []string
	for _, tx := range pageTexts(p) {
		names = append(names, tx.text)
	}
	if got := strings.Join(names, ","); got != "Name,Qty,apple,3" {
		t.Fatalf("单元格文本顺序错误: %s", got)
	}
}

func TestMultiplePageSections(t *testing.T) {
	doc := compileStub(t, `doc T v1 {
  page A4 { text { "first" } }
  page A5 landscape { text { "second" } }
}`)
	if len(doc.Pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(doc.Pages))
	}
	if doc.Pages[1].Index != 1 || !eq(doc.Pages[1].Width, 210*MmToPt) {
		t.Fatalf("第二个 page 段落应为横向 A5: %+v", doc.Pages[1])
	}
}

func TestDataBinding(t *testing.T) {
	src := `doc T v1 { page A4 { text { "Hi ${user.name}" } } }`
	data := map[string]any{"user": map[string]any{"name": "Ada"}}
	doc, err := Compile("t.wb", src, BuildOptions{Typesetter: &stubTypesetter{}, Data: data})
	if err != nil {
		t.Fatalf("编译失败: %v", err)
	}
	if got := pageTexts(&doc.Pages[0])[0].text; got != "Hi Ada" {
		t.Fatalf("占位符未替换: %q", got)
	}

	_, err = Compile("t.wb", `doc T v1 { page A4 {
  text { "Hi ${user.email}" }
} }`, BuildOptions{Typesetter: &stubTypesetter{}, Data: data, StrictData: true})
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Line != 2 {
		t.Fatalf("严格模式下缺失路径应报告第 2 行，实际 %v", err)
	}
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		line int
	}{
		{"syntax", "doc T v1 {\n  page {\n  }\n}", 2},
		{"page size", "doc T v1 {\n  page B9 { text { \"x\" } }\n}", 2},
		{"bad length", "doc T v1 {\n  page A4 {\n    text size abc { \"x\" }\n  }\n}", 3},
		{"pagebreak in group", "doc T v1 {\n  page A4 {\n    group {\n      pagebreak\n    }\n  }\n}", 4},
		{"no page", "doc T v1 {\n  meta { title: \"x\" }\n}", 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Compile("bad.wb", c.src, BuildOptions{Typesetter: &stubTypesetter{}})
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("期望 *CompileError，实际 %T: %v", err, err)
			}
			if ce.Path != "bad.wb" || ce.Line != c.line {
				t.Fatalf("错误位置错误: %+v (%v)", ce, err)
			}
		})
	}
}

func TestCompilePlainText(t *testing.T) {
	doc := compileStub(t, "Hello world\nline two\n\nSecond para\n")
	if len(doc.Pages) != 1 {
		t.Fatalf("期望 1 页，实际 %d", len(doc.Pages))
	}
	texts := pageTexts(&doc.Pages[0])
	if len(texts) != 2 || texts[0].text != "Hello world line two" || texts[1].text != "Second para" {
		t.Fatalf("纯文本分段错误: %+v", texts)
	}
	if !eq(texts[0].m.E, 25*MmToPt) {
		t.Fatalf("纯文本页边距应为 25mm: %g", texts[0].m.E)
	}

	empty := compileStub(t, "")
	if len(empty.Pages) != 1 || len(pageTexts(&empty.Pages[0])) != 0 {
		t.Fatalf("空源码应得到一张空白页")
	}

	blank := compileStub(t, "   ")
	if texts := pageTexts(&blank.Pages[0]); len(texts) != 1 || texts[0].text != "   " {
		t.Fatalf("只含空白的段落应保留: %+v", texts)
	}

	quoted := compileStub(t, "say \"hi\" \\ ok")
	if texts := pageTexts(&quoted.Pages[0]); len(texts) != 1 || texts[0].text != "say \"hi\" \\ ok" {
		t.Fatalf("引号与反斜杠应原样保留: %+v", texts)
	}
}

func TestBoundsIncludesNestedTransforms(t *testing.T) {
	p := NewPage(0, 100, 100)
	g, err := p.AddGroup(p.Root, geom.Translate(10, 20))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddShape(g, geom.Translate(5, 5), &Shape{Kind: ShapeRect, Width: 10, Height: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddShape(g, geom.Identity, &Shape{Kind: ShapeCircle, R: 2}); err != nil {
		t.Fatal(err)
	}
	got, ok := p.Bounds(p.Root)
	if !ok {
		t.Fatalf("Bounds 应找到内容")
	}
	want := geom.Rect{MinX: 8, MinY: 18, MaxX: 25, MaxY: 29}
	if got != want {
		t.Fatalf("Bounds = %+v, want %+v", got, want)
	}
	if _, err := p.AddGroup(FrameID(99), geom.Identity); err == nil {
		t.Fatalf("不存在的父帧应报错")
	}
	if _, ok := NewPage(0, 1, 1).Bounds(0); ok {
		t.Fatalf("空页面不应有包络")
	}
}
