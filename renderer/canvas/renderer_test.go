package canvasrenderer

import (
	"context"
	"image"
	"math"
	"sync"
	"testing"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/wordbox/extract"
	"github.com/ByLCY/wordbox/geom"
	"github.com/ByLCY/wordbox/layout"
	"github.com/ByLCY/wordbox/segment"
	"github.com/ByLCY/wordbox/typeset"
)

func compile(t *testing.T, src string) *layout.Document {
	t.Helper()
	doc, err := layout.Compile("test.wb", src, layout.BuildOptions{Typesetter: typeset.New("")})
	if err != nil {
		t.Fatalf("编译失败: %v", err)
	}
	return doc
}

func isDark(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	return c.R < 128 && c.G < 128 && c.B < 128
}

func sizeNear(got, want int) bool { return got >= want-1 && got <= want+1 }

func TestRasterizeBlankPage(t *testing.T) {
	r := NewRenderer("")
	page := layout.NewPage(0, 144, 72)
	img, err := r.Rasterize(page, 2)
	if err != nil {
		t.Fatalf("栅格化失败: %v", err)
	}
	b := img.Bounds()
	if !sizeNear(b.Dx(), 288) || !sizeNear(b.Dy(), 144) {
		t.Fatalf("图像尺寸错误: %v", b)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if c := img.RGBAAt(x, y); c.R != 255 || c.G != 255 || c.B != 255 {
				t.Fatalf("空白页像素 (%d,%d) 不是白色: %v", x, y, c)
			}
		}
	}
}

func TestRasterizeRejectsBadResolution(t *testing.T) {
	r := NewRenderer("")
	for _, res := range []float64{0, -2, math.NaN()} {
		if _, err := r.Rasterize(layout.NewPage(0, 10, 10), res); err == nil {
			t.Fatalf("分辨率 %v 应报错", res)
		}
	}
}

// 墨迹必须落在提取出的外框内，外框内也必须有墨迹。
func TestInkMatchesExtractedBoxes(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"plain", "Hello, world!"},
		{"rotated", `doc T v1 {
  page custom width 300pt height 300pt margin 20pt {
    group x 100pt y 40pt rotate 90 {
      text size 18pt { "Rotated words" }
    }
    group x 20pt y 200pt scale 1.5 skew-x 15 {
      text { "Skewed, scaled" }
    }
  }
}`},
	}
	const res = 2.0
	const slack = 2.0
	r := NewRenderer("")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := compile(t, tc.src)
			recs, err := extract.Run(context.Background(), doc,
				extract.WithResolution(res),
				extract.WithFilter(segment.Filter{IncludeDelimiters: true}))
			if err != nil {
				t.Fatalf("提取失败: %v", err)
			}
			if len(recs) == 0 {
				t.Fatalf("没有提取到记录")
			}
			img, err := r.Rasterize(&doc.Pages[0], res)
			if err != nil {
				t.Fatalf("栅格化失败: %v", err)
			}
			inBox := func(x, y int) bool {
				px, py := float64(x)+0.5, float64(y)+0.5
				for _, rec := range recs {
					b := rec.BBox
					if px >= b.MinX-slack && px <= b.MaxX+slack && py >= b.MinY-slack && py <= b.MaxY+slack {
						return true
					}
				}
				return false
			}
			bounds := img.Bounds()
			for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
				for x := bounds.Min.X; x < bounds.Max.X; x++ {
					if isDark(img, x, y) && !inBox(x, y) {
						t.Fatalf("像素 (%d,%d) 的墨迹不在任何外框内", x, y)
					}
				}
			}
			for _, rec := range recs {
				if !hasInk(img, rec.BBox) {
					t.Fatalf("外框 %q %+v 内没有墨迹", rec.Text, rec.BBox)
				}
			}
		})
	}
}

func hasInk(img *image.RGBA, b geom.Rect) bool {
	for y := int(math.Floor(b.MinY)); y < int(math.Ceil(b.MaxY)); y++ {
		for x := int(math.Floor(b.MinX)); x < int(math.Ceil(b.MaxX)); x++ {
			if image.Pt(x, y).In(img.Bounds()) && isDark(img, x, y) {
				return true
			}
		}
	}
	return false
}

func TestRasterizeShapes(t *testing.T) {
	page := layout.NewPage(0, 100, 100)
	fill := layout.Color{R: 0, G: 0, B: 0}
	if _, err := page.AddShape(page.Root, geom.Translate(10, 10), &layout.Shape{Kind: layout.ShapeRect, Width: 30, Height: 20, FillColor: &fill}); err != nil {
		t.Fatalf("添加图形失败: %v", err)
	}
	img, err := NewRenderer("").Rasterize(page, 1)
	if err != nil {
		t.Fatalf("栅格化失败: %v", err)
	}
	// 矩形内部为黑色，外部保持白色；y 轴向下
	if !isDark(img, 25, 20) {
		t.Fatalf("矩形内部应为深色")
	}
	if isDark(img, 25, 50) || isDark(img, 60, 20) {
		t.Fatalf("矩形外部不应被填充")
	}
}

func TestConcurrentRasterize(t *testing.T) {
	doc := compile(t, "alpha beta\n\ngamma delta\n\nepsilon")
	r := NewRenderer("")
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Rasterize(&doc.Pages[0], 1)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("第 %d 个并发栅格化失败: %v", i, err)
		}
	}
	if len(r.fontFamilies) != 1 {
		t.Fatalf("字体族应只加载一次，实际 %d", len(r.fontFamilies))
	}
}

func TestMissingFontFallsBack(t *testing.T) {
	r := NewRenderer(t.TempDir())
	family, style, err := r.ensureFontFamily(layout.FontResource{Name: "Missing", Src: "nope.ttf"})
	if err != nil {
		t.Fatalf("缺失字体应回退: %v", err)
	}
	if family == nil || style != canvas.FontRegular {
		t.Fatalf("回退字体族无效")
	}
}

func TestParseFontStyle(t *testing.T) {
	cases := map[string]canvas.FontStyle{
		"":            canvas.FontRegular,
		"bold":        canvas.FontBold,
		"SemiBold":    canvas.FontSemiBold,
		"bold italic": canvas.FontBold | canvas.FontItalic,
		"light":       canvas.FontLight,
		"oblique":     canvas.FontRegular | canvas.FontItalic,
	}
	for in, want := range cases {
		if got := parseFontStyle(in); got != want {
			t.Fatalf("parseFontStyle(%q) = %v, want %v", in, got, want)
		}
	}
}
