package extract

import (
	"fmt"

	"github.com/ByLCY/wordbox/layout"
)

// MalformedLayoutError 表示帧树不满足遍历前提。Glyph 为 -1 时错误与具体字形无关。
type MalformedLayoutError struct {
	Page   int
	Frame  layout.FrameID
	Glyph  int
	Reason string
}

func (e *MalformedLayoutError) Error() string {
	if e.Glyph >= 0 {
		return fmt.Sprintf("布局树异常：第 %d 页 帧 %d 字形 %d：%s", e.Page, e.Frame, e.Glyph, e.Reason)
	}
	return fmt.Sprintf("布局树异常：第 %d 页 帧 %d：%s", e.Page, e.Frame, e.Reason)
}

// ConfigError 表示提取配置无效，在遍历任何页面之前返回。
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置 %s 无效：%s", e.Field, e.Reason)
}

func malformed(page int, frame layout.FrameID, glyph int, format string, args ...any) error {
	return &MalformedLayoutError{Page: page, Frame: frame, Glyph: glyph, Reason: fmt.Sprintf(format, args...)}
}
