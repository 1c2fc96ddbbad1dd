package canvasrenderer

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/wordbox/fonts"
	"github.com/ByLCY/wordbox/geom"
	"github.com/ByLCY/wordbox/layout"
	"github.com/ByLCY/wordbox/renderer"
)

// 未指定描边宽度时使用 0.2mm。
const defaultStrokeWidth = 0.2 * layout.MmToPt

// Renderer 通过 github.com/tdewolff/canvas 栅格化布局页面。
// canvas 内部以 mm 为单位，页面坐标（pt，y 轴向下）在绘制时换算。
type Renderer struct {
	baseDir string
	logger  *slog.Logger

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily *canvas.FontFamily

	// 字形轮廓生成共享字体解析状态，串行执行
	glyphMu sync.Mutex
}

var _ renderer.Rasterizer = (*Renderer)(nil)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Logger  *slog.Logger
}

// NewRenderer creates a renderer resolving font paths relative to baseDir.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

func NewRendererWithOptions(opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		baseDir:      opts.BaseDir,
		logger:       logger,
		fontFamilies: map[string]*fontFamilyEntry{},
	}
}

// Rasterize 把页面绘制为 RGBA 图像。res 为每 pt 的像素数。
func (r *Renderer) Rasterize(page *layout.Page, res float64) (*image.RGBA, error) {
	if page == nil {
		return nil, fmt.Errorf("渲染页面为空")
	}
	if math.IsNaN(res) || math.IsInf(res, 0) || res <= 0 {
		return nil, fmt.Errorf("分辨率 %v 无效", res)
	}
	widthMM, heightMM := page.Width*layout.PtToMm, page.Height*layout.PtToMm
	c := canvas.New(widthMM, heightMM)
	ctx := canvas.NewContext(c)

	ctx.SetFillColor(canvas.White)
	ctx.SetStrokeColor(canvas.Transparent)
	ctx.DrawPath(0, 0, canvas.Rectangle(widthMM, heightMM))

	// 页面坐标 -> canvas 坐标：缩放到 mm 并翻转 y 轴
	base := geom.Affine{A: layout.PtToMm, D: -layout.PtToMm, F: heightMM}

	var drawErr error
	page.Walk(func(id layout.FrameID, f *layout.Frame, m geom.Affine) {
		if drawErr != nil {
			return
		}
		switch f.Kind {
		case layout.FrameText:
			if f.Text != nil {
				drawErr = r.drawText(ctx, f.Text, base.Then(m))
			}
		case layout.FrameShape:
			if f.Shape != nil {
				drawShape(ctx, f.Shape, base.Then(m))
			}
		}
	})
	if drawErr != nil {
		return nil, drawErr
	}

	img := rasterizer.Draw(c, canvas.DPMM(res*layout.MmToPt), canvas.DefaultColorSpace)
	return img, nil
}

// drawText 逐个字形簇绘制，簇的位置取自布局结果，保证与外框一致。
func (r *Renderer) drawText(ctx *canvas.Context, run *layout.TextRun, m geom.Affine) error {
	face, err := r.fontFace(run.Font, run.Size)
	if err != nil {
		return err
	}
	ctx.SetFillColor(colorFromLayout(run.Color))
	ctx.SetStrokeColor(canvas.Transparent)
	// 字形轮廓为 mm、y 轴向上，先换回 pt、y 轴向下
	glyphUnits := geom.Scale(layout.MmToPt, -layout.MmToPt)
	for _, g := range run.Glyphs {
		text := run.ClusterText(g)
		if strings.TrimFunc(text, unicode.IsSpace) == "" {
			continue
		}
		r.glyphMu.Lock()
		path, _, err := face.ToPath(text)
		r.glyphMu.Unlock()
		if err != nil {
			return fmt.Errorf("生成字形 %q 轮廓失败: %w", text, err)
		}
		gm := m.Then(geom.Translate(g.X, 0)).Then(glyphUnits)
		ctx.DrawPath(0, 0, path.Transform(toMatrix(gm)))
	}
	return nil
}

func drawShape(ctx *canvas.Context, s *layout.Shape, m geom.Affine) {
	w := s.StrokeWidth
	if w <= 0 {
		w = defaultStrokeWidth
	}
	if s.FillColor != nil && s.Kind != layout.ShapeLine {
		ctx.SetFillColor(colorFromLayout(*s.FillColor))
	} else {
		ctx.SetFillColor(canvas.Transparent)
	}
	ctx.SetStrokeColor(colorFromLayout(s.StrokeColor))
	ctx.SetStrokeWidth(w * layout.PtToMm)

	var p *canvas.Path
	switch s.Kind {
	case layout.ShapeLine:
		p = &canvas.Path{}
		p.MoveTo(0, 0)
		p.LineTo(s.DX, s.DY)
	case layout.ShapeCircle:
		p = canvas.Circle(s.R)
	default:
		p = canvas.Rectangle(s.Width, s.Height)
	}
	ctx.DrawPath(0, 0, p.Transform(toMatrix(m)))
}

func toMatrix(m geom.Affine) canvas.Matrix {
	return canvas.Matrix{{m.A, m.C, m.E}, {m.B, m.D, m.F}}
}

func (r *Renderer) fontFace(font layout.FontResource, sizePt float64) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	if sizePt <= 0 {
		sizePt = 12
	}
	return family.Face(sizePt, canvas.Black, style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	familyName := font.Family
	if familyName == "" {
		familyName = font.Name
	}
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)

	if err := r.loadFontIntoFamily(family, font, style); err != nil {
		fallback, fbErr := r.fallback()
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.logger.Warn("font load failed, using fallback", "font", font.Name, "src", font.Src, "err", err)
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: canvas.FontRegular}
		return fallback, canvas.FontRegular, nil
	}

	entry := &fontFamilyEntry{family: family, style: style}
	r.fontFamilies[key] = entry
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, font layout.FontResource, style canvas.FontStyle) error {
	data, err := fonts.Load(font.Src, r.baseDir)
	if err != nil {
		return err
	}
	return family.LoadFont(data, 0, style)
}

// fallback 需在持有 fontMu 时调用。
func (r *Renderer) fallback() (*canvas.FontFamily, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, nil
	}
	data, err := fonts.Load(fonts.DefaultSrc, "")
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("wordbox-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	r.fallbackFamily = family
	return family, nil
}

func parseFontStyle(style string) canvas.FontStyle {
	if style == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	var result canvas.FontStyle
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	default:
		result = canvas.FontRegular
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font layout.FontResource) string {
	return fmt.Sprintf("%s|%s|%s", font.Name, font.Src, font.Style)
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}
