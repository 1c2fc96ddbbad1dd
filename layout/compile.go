package layout

import (
	"strconv"
	"strings"

	"github.com/ByLCY/wordbox/dsl"
)

// Compile 把源码编译为文档。以 `doc <name> <version> {` 开头的源码按 DSL 解析，
// 其余按纯文本处理：空行分段，段内换行折叠为空格，排在 A4 页面上。
// path 只用于错误信息中的位置。所有失败都以 *CompileError 返回。
func Compile(path, source string, opts BuildOptions) (*Document, error) {
	if !dsl.IsDocument(source) {
		opts.logger().Debug("source has no doc header, compiling as plain text", "path", path)
		source = PlainTextSource(source)
	}
	ast, err := dsl.ParseString(path, source)
	if err != nil {
		return nil, asCompileError(path, err)
	}
	doc, err := Build(ast, opts)
	if err != nil {
		return nil, asCompileError(path, err)
	}
	return doc, nil
}

// PlainTextSource 把纯文本包装成等价的 DSL 文档。
// 只含空白的段落会保留；空源码得到一张空白页。
func PlainTextSource(text string) string {
	var b strings.Builder
	b.WriteString("doc Plain v1 {\n  page A4 margin 25mm {\n")
	for _, para := range splitParagraphs(text) {
		b.WriteString("    text { ")
		b.WriteString(strconv.Quote(para))
		b.WriteString(" }\n")
	}
	b.WriteString("  }\n}\n")
	return b.String()
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	var out, cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}
