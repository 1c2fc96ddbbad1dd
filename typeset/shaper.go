// Package typeset 基于 go-text/typesetting（HarfBuzz 移植）实现 layout.Typesetter：
// 对文本整形得到字形簇与步进宽度，再用贪心算法折行。
package typeset

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/ByLCY/wordbox/fonts"
	"github.com/ByLCY/wordbox/layout"
)

// Shaper 实现 layout.Typesetter。字号、宽度与行高均以 pt 为单位。
type Shaper struct {
	baseDir string

	mu     sync.Mutex
	faces  map[string]*gofont.Face
	shaper shaping.HarfbuzzShaper
}

var _ layout.Typesetter = (*Shaper)(nil)

// New 创建以 baseDir 为字体路径根目录的 Shaper。
func New(baseDir string) *Shaper {
	return &Shaper{baseDir: baseDir, faces: map[string]*gofont.Face{}}
}

// cluster 是整形后的一个字形簇：[start,end) 为 content 中的字节区间。
type cluster struct {
	start, end int
	advance    float64
	space      bool
}

// LayoutLines 对 content 整形并折行。返回的每一行携带相对于行首的字形位置。
func (s *Shaper) LayoutLines(content string, width float64, font layout.FontResource, fontSize, lineHeight float64, wrap string) ([]layout.TextLine, error) {
	if fontSize <= 0 {
		return nil, fmt.Errorf("字号必须为正数: %g", fontSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	face, err := s.face(font)
	if err != nil {
		return nil, err
	}

	ascent, descent := 0.8*fontSize, 0.2*fontSize
	haveMetrics := false
	var lines []layout.TextLine
	offset := 0
	for _, hard := range strings.Split(content, "\n") {
		hardStart := offset
		offset += len(hard) + 1
		text := strings.TrimSuffix(hard, "\r")
		if text == "" {
			lines = append(lines, layout.TextLine{})
			continue
		}
		clusters, asc, desc := s.shape(face, text, fontSize)
		if !haveMetrics && asc+desc > 0 {
			ascent, descent, haveMetrics = asc, desc, true
		}
		for _, span := range wrapClusters(clusters, width, wrap) {
			lines = append(lines, buildLine(content, hardStart, clusters[span[0]:span[1]]))
		}
	}

	textHeight := ascent + descent
	leading := lineHeight - textHeight
	if leading < 0 {
		leading = 0
	}
	for i := range lines {
		lines[i].Ascent = ascent
		lines[i].Descent = descent
		lines[i].Height = textHeight
		if i > 0 {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

func (s *Shaper) face(font layout.FontResource) (*gofont.Face, error) {
	key := font.Src
	if key == "" {
		key = fonts.DefaultSrc
	}
	if f, ok := s.faces[key]; ok {
		return f, nil
	}
	f, err := s.load(key)
	if err != nil && font.Fallback != "" {
		f, err = s.load(font.Fallback)
	}
	if err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", font.Name, err)
	}
	s.faces[key] = f
	return f, nil
}

func (s *Shaper) load(src string) (*gofont.Face, error) {
	data, err := fonts.Load(src, s.baseDir)
	if err != nil {
		return nil, err
	}
	return gofont.ParseTTF(bytes.NewReader(data))
}

// shape 返回 text 的字形簇（字节区间相对于 text）以及行的上升/下降高度。
func (s *Shaper) shape(face *gofont.Face, text string, fontSize float64) ([]cluster, float64, float64) {
	// 非法 UTF-8 字节按 U+FFFD 整形，但区间仍指向原始的单个字节。
	runes := make([]rune, 0, len(text))
	byteAt := make([]int, 0, len(text)+1)
	for pos := 0; pos < len(text); {
		r, size := utf8.DecodeRuneInString(text[pos:])
		runes = append(runes, r)
		byteAt = append(byteAt, pos)
		pos += size
	}
	byteAt = append(byteAt, len(text))

	out := s.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      face,
		Size:      fixed.Int26_6(fontSize * 64),
		Script:    detectScript(runes),
		Language:  language.DefaultLanguage(),
	})

	var clusters []cluster
	for _, g := range out.Glyphs {
		adv := float64(g.XAdvance) / 64
		if n := len(clusters); n > 0 && clusters[n-1].start == byteAt[g.ClusterIndex] {
			clusters[n-1].advance += adv
			continue
		}
		clusters = append(clusters, cluster{start: byteAt[g.ClusterIndex], advance: adv})
	}
	for i := range clusters {
		if i+1 < len(clusters) {
			clusters[i].end = clusters[i+1].start
		} else {
			clusters[i].end = len(text)
		}
		clusters[i].space = isSpace(text[clusters[i].start:clusters[i].end])
	}
	ascent := float64(out.LineBounds.Ascent) / 64
	descent := -float64(out.LineBounds.Descent) / 64
	return clusters, ascent, descent
}

func buildLine(content string, base int, cs []cluster) layout.TextLine {
	if len(cs) == 0 {
		return layout.TextLine{}
	}
	start := cs[0].start
	line := layout.TextLine{
		Content: content[base+start : base+cs[len(cs)-1].end],
		Glyphs:  make([]layout.Glyph, 0, len(cs)),
	}
	x := 0.0
	for _, c := range cs {
		line.Glyphs = append(line.Glyphs, layout.Glyph{
			Start:   c.start - start,
			End:     c.end - start,
			X:       x,
			Advance: c.advance,
		})
		x += c.advance
	}
	line.Width = x
	return line
}

func isSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return s != ""
}

func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if sc := language.LookupScript(r); sc != language.Common && sc != language.Inherited && sc != language.Unknown {
			return sc
		}
	}
	return language.Latin
}
