// Package renderer 定义把布局页面转换为像素图的接口。
package renderer

import (
	"image"

	"github.com/ByLCY/wordbox/layout"
)

// Rasterizer 把一页布局按 res（像素/pt）栅格化，背景为白色。
// 实现需允许多个 goroutine 同时栅格化不同页面。
type Rasterizer interface {
	Rasterize(page *layout.Page, res float64) (*image.RGBA, error)
}
