// Package segment 把文本行中的字形簇划分为词、分隔符与空白三类片段。
//
// 字符类别（可配置常量）：
//   - 空白：Unicode White_Space 属性（unicode.IsSpace），即空格、制表符与各类换行。
//   - 分隔符：Unicode 标点类别 P*（终止标点、括号、引号、连接号等），
//     加上 ASCII 中归为符号的 $ + < = > ^ ` | ~，与常见排版引擎的
//     ASCII punctuation 定义一致。可通过 NewClassifier 追加字符。
//   - 其余字符均属于词。
package segment

import (
	"fmt"
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// Kind 是片段类别。
type Kind uint8

const (
	Word Kind = iota
	Delimiter
	Whitespace
)

var kindNames = [...]string{
	Word:       "word",
	Delimiter:  "delimiter",
	Whitespace: "whitespace",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText 使 Kind 在 JSON 中输出为 "word" / "delimiter" / "whitespace"。
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("未知的片段类别 %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// asciiSymbols 是 ASCII 可见符号中不属于 Unicode P* 的部分。
const asciiSymbols = "$+<=>^`|~"

// DefaultDelimiters 是默认的分隔符字符表。
var DefaultDelimiters = rangetable.Merge(unicode.P, rangetable.New([]rune(asciiSymbols)...))

// Classifier 是无状态的字符分类器，可被多个 goroutine 共享。
type Classifier struct {
	delimiters *unicode.RangeTable
}

// Default 使用 DefaultDelimiters。
var Default = &Classifier{delimiters: DefaultDelimiters}

// NewClassifier 在默认分隔符之外追加 extra 中的字符；extra 中的空白字符被忽略。
func NewClassifier(extra string) *Classifier {
	var runes []rune
	for _, r := range extra {
		if !unicode.IsSpace(r) {
			runes = append(runes, r)
		}
	}
	if len(runes) == 0 {
		return Default
	}
	return &Classifier{delimiters: rangetable.Merge(DefaultDelimiters, rangetable.New(runes...))}
}

// Rune 返回单个字符的类别。
func (c *Classifier) Rune(r rune) Kind {
	switch {
	case unicode.IsSpace(r):
		return Whitespace
	case unicode.Is(c.delimiters, r):
		return Delimiter
	default:
		return Word
	}
}

// Cluster 返回一个字形簇（可能含多个字符）的类别：全为空白时为空白，
// 只含分隔符与空白时为分隔符，否则为词。空字符串返回 ok=false。
func (c *Classifier) Cluster(s string) (kind Kind, ok bool) {
	if s == "" {
		return Word, false
	}
	kind = Whitespace
	for _, r := range s {
		switch c.Rune(r) {
		case Word:
			return Word, true
		case Delimiter:
			kind = Delimiter
		}
	}
	return kind, true
}

// Segment 是同类字形簇的最大连续段，[Start, End) 为字形下标区间。
type Segment struct {
	Kind  Kind
	Start int
	End   int
}

// Len 返回片段包含的字形数。
func (s Segment) Len() int { return s.End - s.Start }

// Split 将按顺序排列的字形簇文本划分为片段，片段首尾相接、覆盖全部字形。
// 空文本的字形（例如连字的后续字形）并入前一个片段；出现在行首时并入后一个片段。
// 全部为空文本时整体视为空白。
func (c *Classifier) Split(clusters []string) []Segment {
	if len(clusters) == 0 {
		return nil
	}
	var segs []Segment
	leading := 0
	for i, text := range clusters {
		kind, ok := c.Cluster(text)
		if !ok {
			if len(segs) == 0 {
				leading++
			} else {
				segs[len(segs)-1].End = i + 1
			}
			continue
		}
		if n := len(segs); n > 0 && segs[n-1].Kind == kind {
			segs[n-1].End = i + 1
			continue
		}
		start := i
		if len(segs) == 0 {
			start = 0
		}
		segs = append(segs, Segment{Kind: kind, Start: start, End: i + 1})
	}
	if len(segs) == 0 {
		return []Segment{{Kind: Whitespace, Start: 0, End: leading}}
	}
	return segs
}

// Filter 决定哪些类别的片段出现在最终输出中；词总是保留。
type Filter struct {
	IncludeDelimiters bool
	IncludeWhitespace bool
}

// Keep 报告类别 k 的片段是否输出。
func (f Filter) Keep(k Kind) bool {
	switch k {
	case Delimiter:
		return f.IncludeDelimiters
	case Whitespace:
		return f.IncludeWhitespace
	default:
		return true
	}
}

// Apply 返回 Keep 保留的片段，保持原有顺序。被丢弃的片段仍然占用各自的字形。
func (f Filter) Apply(segs []Segment) []Segment {
	out := segs[:0:0]
	for _, s := range segs {
		if f.Keep(s.Kind) {
			out = append(out, s)
		}
	}
	return out
}
