package layout

import "log/slog"

// BuildOptions 配置编译阶段所需的依赖与外部数据。
type BuildOptions struct {
	Typesetter Typesetter
	Logger     *slog.Logger

	// Data 供 ${path} 占位符取值；StrictData 为 true 时缺失路径是编译错误。
	Data       any
	StrictData bool
}

func (o BuildOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
// 所有长度单位为 pt；返回的每一行需填充 Ascent/Descent/Height 与 Glyphs。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error)
}
