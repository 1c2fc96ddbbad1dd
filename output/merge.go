package output

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Merge 把各页纵向拼接，页间留 gap 像素的 fill 色间隔，
// 返回拼接后的图像与每页左上角的位置。
func Merge(pages []*image.RGBA, gap int, fill color.Color) (*image.RGBA, []image.Point) {
	if gap < 0 {
		gap = 0
	}
	width, height := 0, 0
	for i, p := range pages {
		b := p.Bounds()
		width = max(width, b.Dx())
		height += b.Dy()
		if i > 0 {
			height += gap
		}
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	if fill != nil {
		draw.Draw(out, out.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	}
	offsets := make([]image.Point, len(pages))
	y := 0
	for i, p := range pages {
		b := p.Bounds()
		offsets[i] = image.Pt(0, y)
		draw.Draw(out, image.Rect(0, y, b.Dx(), y+b.Dy()), p, b.Min, draw.Src)
		y += b.Dy() + gap
	}
	return out, offsets
}
