// Package output 负责把提取结果写成 JSON 与 PNG：记录序列化、外框叠加、
// 多页拼接，以及先写临时文件再统一改名的原子提交。
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ByLCY/wordbox/extract"
	"github.com/ByLCY/wordbox/segment"
)

// Box 是 JSON 中的像素矩形，X/Y 为左上角。
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Entry 是 JSON 数组中的一项。
type Entry struct {
	Page int          `json:"page"`
	Text string       `json:"text"`
	Kind segment.Kind `json:"kind"`
	BBox Box          `json:"bbox"`
}

// Entries 按原顺序转换记录；recs 为空时返回非 nil 的空切片，保证输出 []。
func Entries(recs []extract.Record) []Entry {
	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[i] = Entry{
			Page: r.Page,
			Text: r.Text,
			Kind: r.Kind,
			BBox: Box{
				X:      zero(r.BBox.MinX),
				Y:      zero(r.BBox.MinY),
				Width:  zero(r.BBox.Width()),
				Height: zero(r.BBox.Height()),
			},
		}
	}
	return out
}

// WriteJSON 以两个空格缩进写出记录数组，不转义 HTML 字符。
func WriteJSON(w io.Writer, recs []extract.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Entries(recs)); err != nil {
		return fmt.Errorf("编码记录失败: %w", err)
	}
	return nil
}

// zero 把 -0 规范为 0，避免 JSON 中出现 "-0"。
func zero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
