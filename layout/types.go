package layout

// 该文件定义编译后的文档模型：页面持有一棵以下标寻址的帧树（arena），
// 供遍历、渲染与调试 JSON 共用。所有长度单位均为 pt，原点在页面左上角，y 轴向下。

import (
	"fmt"

	"github.com/ByLCY/wordbox/geom"
)

// Document 是编译结果，编译完成后不再修改。
type Document struct {
	Pages     []Page       `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
}

// ResourceSet 记录解析出的字体、颜色与样式定义。
type ResourceSet struct {
	Fonts  map[string]FontResource `json:"fonts"`
	Colors map[string]Color        `json:"colors"`
	Styles map[string]Style        `json:"styles"`
}

// FontResource 描述字体资源，src 可以是文件路径或 builtin:<name>。
type FontResource struct {
	Name     string `json:"name"`
	Src      string `json:"src"`
	Style    string `json:"style,omitempty"`
	Family   string `json:"family,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Margin 以 pt 为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Page 是一个渲染面。Frames 是帧的 arena，Root 指向根分组帧。
type Page struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin Margin  `json:"margin"`
	Root   FrameID `json:"root"`
	Frames []Frame `json:"frames"`
}

// FrameID 是帧在 Page.Frames 中的下标。
type FrameID int

// FrameKind 区分分组帧与两类叶子帧。
type FrameKind uint8

const (
	FrameGroup FrameKind = iota
	FrameText
	FrameShape
)

func (k FrameKind) String() string {
	switch k {
	case FrameGroup:
		return "group"
	case FrameText:
		return "text"
	case FrameShape:
		return "shape"
	default:
		return fmt.Sprintf("frame(%d)", uint8(k))
	}
}

// MarshalText 让调试 JSON 中的帧类型可读。
func (k FrameKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Frame 是布局树中的节点。Transform 相对父帧坐标系；
// 分组帧的 Transform 作用于全部子帧。
type Frame struct {
	Kind      FrameKind   `json:"kind"`
	Transform geom.Affine `json:"transform"`
	Children  []FrameID   `json:"children,omitempty"`
	Text      *TextRun    `json:"text,omitempty"`
	Shape     *Shape      `json:"shape,omitempty"`
}

// TextRun 是共享同一样式的一行字形。原点位于基线左端，
// 字形纵向占据 [-Ascent, +Descent]。
type TextRun struct {
	Text    string       `json:"text"`
	Font    FontResource `json:"font"`
	Size    float64      `json:"size"`
	Ascent  float64      `json:"ascent"`
	Descent float64      `json:"descent"`
	Color   Color        `json:"color"`
	Glyphs  []Glyph      `json:"glyphs"`
}

// Glyph 是整形后的字形簇。Text[Start:End] 为其源字符，X 为相对行首的笔位置。
type Glyph struct {
	Start   int     `json:"start"`
	End     int     `json:"end"`
	X       float64 `json:"x"`
	Advance float64 `json:"advance"`
}

// ClusterText 返回字形 g 在 run 中的源字符。
func (r *TextRun) ClusterText(g Glyph) string { return r.Text[g.Start:g.End] }

// ShapeKind 区分基本图形。
type ShapeKind uint8

const (
	ShapeLine ShapeKind = iota
	ShapeRect
	ShapeCircle
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeLine:
		return "line"
	case ShapeRect:
		return "rect"
	case ShapeCircle:
		return "circle"
	default:
		return fmt.Sprintf("shape(%d)", uint8(k))
	}
}

func (k ShapeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Shape 是图形叶子，几何以所在帧原点为基准：
// line 从 (0,0) 到 (DX,DY)；rect 占据 (0,0)-(Width,Height)；circle 圆心在原点。
type Shape struct {
	Kind        ShapeKind `json:"kind"`
	DX          float64   `json:"dx,omitempty"`
	DY          float64   `json:"dy,omitempty"`
	Width       float64   `json:"width,omitempty"`
	Height      float64   `json:"height,omitempty"`
	R           float64   `json:"r,omitempty"`
	StrokeColor Color     `json:"strokeColor"`
	StrokeWidth float64   `json:"strokeWidth"`
	FillColor   *Color    `json:"fillColor,omitempty"`
}

// TextLine 表示排版后的一行文本，Glyphs 的区间相对于 Content。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Ascent    float64 `json:"ascent"`
	Descent   float64 `json:"descent"`
	GapBefore float64 `json:"gapBefore,omitempty"`
	Glyphs    []Glyph `json:"glyphs,omitempty"`
}

// Style 用于描述可继承的文本样式。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// DocumentMeta 保存文档元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
