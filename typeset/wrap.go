package typeset

import "math"

// wrapClusters 把一条硬行的字形簇按宽度贪心折行，返回每一行的簇区间 [from, to)。
//
// wrap 取值：
//   - nowrap：不折行；
//   - break-word：忽略空白断点，逐簇按宽度切分；
//   - 其它（anywhere/normal）：优先在空白处断开，单词超宽时在词内切分。
func wrapClusters(cs []cluster, width float64, wrap string) [][2]int {
	if len(cs) == 0 {
		return nil
	}
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}
	if wrap == "nowrap" {
		return [][2]int{{0, len(cs)}}
	}
	if wrap == "break-word" {
		return splitByWidth(cs, 0, len(cs), limit)
	}

	var spans [][2]int
	lineStart, cursor := 0, 0
	current := 0.0
	emit := func() {
		if cursor > lineStart {
			spans = append(spans, [2]int{lineStart, cursor})
		}
		lineStart = cursor
		current = 0
	}
	for _, tok := range tokens(cs) {
		w := 0.0
		for _, c := range cs[tok[0]:tok[1]] {
			w += c.advance
		}
		if current > 0 && current+w > limit {
			emit()
		}
		if w <= limit {
			cursor = tok[1]
			current += w
			continue
		}
		// 超宽单词：逐簇切分，前面的部分各自成行
		parts := splitByWidth(cs, tok[0], tok[1], limit)
		for i, p := range parts {
			cursor = p[1]
			if i < len(parts)-1 {
				emit()
				continue
			}
			current = 0
			for _, c := range cs[p[0]:p[1]] {
				current += c.advance
			}
		}
	}
	emit()
	return spans
}

// tokens 把簇序列切成空白/非空白交替的片段。
func tokens(cs []cluster) [][2]int {
	var out [][2]int
	start := 0
	for i := 1; i <= len(cs); i++ {
		if i == len(cs) || cs[i].space != cs[start].space {
			out = append(out, [2]int{start, i})
			start = i
		}
	}
	return out
}

func splitByWidth(cs []cluster, from, to int, limit float64) [][2]int {
	var out [][2]int
	start := from
	current := 0.0
	for i := from; i < to; i++ {
		if i > start && current+cs[i].advance > limit {
			out = append(out, [2]int{start, i})
			start = i
			current = 0
		}
		current += cs[i].advance
	}
	if start < to {
		out = append(out, [2]int{start, to})
	}
	return out
}
