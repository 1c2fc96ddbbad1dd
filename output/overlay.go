package output

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/ByLCY/wordbox/extract"
)

// DefaultBoxColor 是半透明红色。
var DefaultBoxColor = color.NRGBA{R: 255, A: 180}

// OverlayOptions 控制外框的绘制。
type OverlayOptions struct {
	Color color.Color
	// Offsets[i] 是第 i 页在图像中的左上角，用于拼接后的多页图像；为空时不偏移。
	Offsets []image.Point
}

// Overlay 复制 img，并按记录顺序在副本上绘制 1 像素宽的空心外框。
// 后绘制的外框覆盖先绘制的。
func Overlay(img image.Image, recs []extract.Record, opts OverlayOptions) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	c := opts.Color
	if c == nil {
		c = DefaultBoxColor
	}
	src := image.NewUniform(c)
	for _, r := range recs {
		var off image.Point
		if r.Page >= 0 && r.Page < len(opts.Offsets) {
			off = opts.Offsets[r.Page]
		}
		x0 := int(math.Floor(r.BBox.MinX)) + off.X + b.Min.X
		y0 := int(math.Floor(r.BBox.MinY)) + off.Y + b.Min.Y
		x1 := max(int(math.Ceil(r.BBox.MaxX))+off.X+b.Min.X, x0+1)
		y1 := max(int(math.Ceil(r.BBox.MaxY))+off.Y+b.Min.Y, y0+1)
		outline(out, image.Rect(x0, y0, x1, y1), src)
	}
	return out
}

// outline 绘制 rect 最外圈像素，每个像素只混合一次。
func outline(dst draw.Image, rect image.Rectangle, src image.Image) {
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1),
	}
	if rect.Dy() > 1 {
		edges = append(edges, image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y))
	}
	if rect.Dy() > 2 {
		edges = append(edges, image.Rect(rect.Min.X, rect.Min.Y+1, rect.Min.X+1, rect.Max.Y-1))
		if rect.Dx() > 1 {
			edges = append(edges, image.Rect(rect.Max.X-1, rect.Min.Y+1, rect.Max.X, rect.Max.Y-1))
		}
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}
