package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/wordbox/dsl"
	"github.com/ByLCY/wordbox/fonts"
	"github.com/ByLCY/wordbox/geom"
)

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Styles: map[string]Style{},
	}
	rawStyles := map[string]Style{}

	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil {
				continue
			}
			cmd := stmt.Command
			switch cmd.Name {
			case "font":
				font := parseFontResource(cmd)
				if font.Name != "" {
					res.Fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(cmd)
				if name == "" || value == "" {
					continue
				}
				c, err := parseColor(value)
				if err != nil {
					return res, wrapAt(cmd.Pos, err)
				}
				res.Colors[name] = c
			case "style":
				style := parseStyleResource(cmd)
				if style.Name != "" {
					rawStyles[style.Name] = style
				}
			}
		}
	}

	if _, ok := res.Fonts["Body"]; !ok {
		res.Fonts["Body"] = FontResource{
			Name:   "Body",
			Src:    fonts.DefaultSrc,
			Family: "Body",
		}
	}

	resolvedStyles, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolvedStyles
	return res, nil
}

func collectMeta(doc *dsl.Document) DocumentMeta {
	meta := DocumentMeta{
		Creator: "wordbox",
	}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = valueToString(stmt.Assignment.Value)
			case "author":
				meta.Author = valueToString(stmt.Assignment.Value)
			case "subject":
				meta.Subject = valueToString(stmt.Assignment.Value)
			case "creator":
				meta.Creator = valueToString(stmt.Assignment.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{
		Name:   cmd.Args[0].Value,
		Family: cmd.Args[0].Value,
	}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil || stmt.Assignment.Value.String == nil {
			continue
		}
		val := string(*stmt.Assignment.Value.String)
		switch stmt.Assignment.Key {
		case "src":
			font.Src = val
		case "style":
			font.Style = val
		case "family":
			font.Family = val
		case "fallback":
			font.Fallback = val
		}
	}
	return font
}

func parseStyleResource(cmd *dsl.Command) Style {
	if len(cmd.Args) == 0 {
		return Style{}
	}
	style := Style{
		Name:  cmd.Args[0].Value,
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		style.Extends = cmd.Args[2].Value
	}
	if cmd.Block == nil {
		return style
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		if val := valueToString(stmt.Assignment.Value); val != "" {
			style.Props[stmt.Assignment.Key] = val
		}
	}
	return style
}

func resolveStyles(styles map[string]Style) (map[string]Style, error) {
	resolved := map[string]Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (Style, error)
	dfs = func(name string) (Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return Style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// parseColorResource 支持 `color Name = #RRGGBB` 与 `color Name #RRGGBB`。
func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	name := cmd.Args[0].Value
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return name, value
}

// 纸张尺寸，单位 mm。
var pagePresets = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

// resolvePageSize 返回以 pt 为单位的页面宽高。
// 除预设纸张外也接受 `page custom width 300pt height 200pt`。
func resolvePageSize(spec dsl.PageSpec) (float64, float64, error) {
	var width, height float64
	if strings.EqualFold(spec.Size, "custom") {
		_, attrs := parseArgs(spec.Params, false)
		var err error
		if width, err = parseDimension(attrs["width"], 0); err != nil {
			return 0, 0, fmt.Errorf("自定义页面宽度: %w", err)
		}
		if height, err = parseDimension(attrs["height"], 0); err != nil {
			return 0, 0, fmt.Errorf("自定义页面高度: %w", err)
		}
		if width <= 0 || height <= 0 {
			return 0, 0, fmt.Errorf("自定义页面尺寸必须为正数")
		}
	} else {
		base, ok := pagePresets[strings.ToUpper(spec.Size)]
		if !ok {
			return 0, 0, fmt.Errorf("暂不支持的纸张尺寸：%s", spec.Size)
		}
		width, height = base[0]*MmToPt, base[1]*MmToPt
	}
	for _, token := range spec.Params {
		if token.Value == "landscape" {
			width, height = height, width
		}
	}
	return width, height, nil
}

// resolveMargin 按 CSS 语义解析 margin 后的 1~4 个长度，默认四边 20mm。
// 3 个值时左边距为 0。
func resolveMargin(params []*dsl.Lexeme) Margin {
	d := 20 * MmToPt
	margin := Margin{Top: d, Right: d, Bottom: d, Left: d}
	for i := 0; i < len(params); i++ {
		if params[i].Value != "margin" {
			continue
		}
		// 遇到非长度的记号（如 portrait）即停止
		vals := []float64{}
		for j := i + 1; j < len(params) && len(vals) < 4; j++ {
			l, err := ParseLength(params[j].Value)
			if err != nil || l.Unit == UnitPercent {
				break
			}
			vals = append(vals, l.Points())
		}
		switch len(vals) {
		case 1:
			v := vals[0]
			margin = Margin{Top: v, Right: v, Bottom: v, Left: v}
		case 2:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}
		case 3:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: 0}
		case 4:
			margin = Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}
		}
	}
	return margin
}

// parseArgs 把命令参数解析为可选的样式名与 key value 属性对。
// 参数个数为奇数时首个标识符是样式名（text Body size 12pt）。
// 负数在词法上是 "-" 与数字两个记号，这里先合并。
func parseArgs(args []*dsl.Lexeme, allowStyle bool) (string, map[string]string) {
	result := map[string]string{}
	args = joinSigns(args)
	if len(args) == 0 {
		return "", result
	}

	cursor := 0
	var style string
	if allowStyle && len(args)%2 == 1 && args[0].Type == "Ident" {
		style = args[0].Value
		cursor = 1
	}
	for cursor < len(args)-1 {
		result[args[cursor].Value] = args[cursor+1].Value
		cursor += 2
	}
	return style, result
}

func joinSigns(args []*dsl.Lexeme) []*dsl.Lexeme {
	out := make([]*dsl.Lexeme, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a.Type == "Symbol" && a.Value == "-" && i+1 < len(args) && args[i+1].Type == "Number" {
			n := *args[i+1]
			n.Value = "-" + n.Value
			n.Raw = "-" + n.Raw
			n.Pos = a.Pos
			out = append(out, &n)
			i++
			continue
		}
		out = append(out, a)
	}
	return out
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) map[string]string {
	out := make(map[string]string)
	if style != "" {
		if s, ok := styles[style]; ok {
			for k, v := range s.Props {
				out[k] = v
			}
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out
}

func extractText(block *dsl.Block) string {
	if block == nil {
		return ""
	}
	var builder strings.Builder
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			builder.WriteString(string(stmt.Text.Value))
		}
	}
	return builder.String()
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if font, ok := res.Fonts["Body"]; ok {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("字体 %s 未定义，且没有可用的默认字体", name)
}

func resolveColor(value string, res ResourceSet) Color {
	if value == "" {
		return Color{R: 30, G: 30, B: 30}
	}
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return Color{R: 30, G: 30, B: 30}
}

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3:
		return Color{
			R: mustHex(strings.Repeat(value[0:1], 2)),
			G: mustHex(strings.Repeat(value[1:2], 2)),
			B: mustHex(strings.Repeat(value[2:3], 2)),
		}, nil
	case 6, 8:
		return Color{
			R: mustHex(value[0:2]),
			G: mustHex(value[2:4]),
			B: mustHex(value[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}

// parseLineShape 支持完整写法 x1/y1/x2/y2 与简写
// `line x <len> y <len> length <len> [dir h|v]`。
func parseLineShape(attrs map[string]string, res ResourceSet) (*Shape, geom.Affine, error) {
	ln := &Shape{Kind: ShapeLine, StrokeColor: resolveStroke(attrs, res), StrokeWidth: 1}
	if v := attrs["width"]; v != "" {
		w, err := parseDimension(v, 0)
		if err != nil {
			return nil, geom.Affine{}, err
		}
		ln.StrokeWidth = w
	}
	if attrs["x1"] != "" || attrs["x2"] != "" || attrs["y1"] != "" || attrs["y2"] != "" {
		var c [4]float64
		for i, key := range []string{"x1", "y1", "x2", "y2"} {
			v, err := optionalDimension(attrs[key], 0)
			if err != nil {
				return nil, geom.Affine{}, err
			}
			c[i] = v
		}
		ln.DX, ln.DY = c[2]-c[0], c[3]-c[1]
		return ln, geom.Translate(c[0], c[1]), nil
	}
	x, err := optionalDimension(attrs["x"], 0)
	if err != nil {
		return nil, geom.Affine{}, err
	}
	y, err := optionalDimension(attrs["y"], 0)
	if err != nil {
		return nil, geom.Affine{}, err
	}
	length, err := parseDimension(attrs["length"], 0)
	if err != nil {
		return nil, geom.Affine{}, fmt.Errorf("line 缺少端点或 length: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(attrs["dir"])) {
	case "", "h", "hor", "horizontal":
		ln.DX = length
	case "v", "ver", "vertical":
		ln.DY = length
	default:
		return nil, geom.Affine{}, fmt.Errorf("line 的方向 %q 无效", attrs["dir"])
	}
	return ln, geom.Translate(x, y), nil
}

func parseRectShape(attrs map[string]string, res ResourceSet) (*Shape, geom.Affine, error) {
	var v [4]float64
	for i, key := range []string{"x", "y", "width", "height"} {
		d, err := optionalDimension(attrs[key], 0)
		if err != nil {
			return nil, geom.Affine{}, err
		}
		v[i] = d
	}
	if v[2] <= 0 || v[3] <= 0 {
		return nil, geom.Affine{}, fmt.Errorf("rect 的宽高必须为正数")
	}
	rc := &Shape{Kind: ShapeRect, Width: v[2], Height: v[3]}
	if err := applyStroke(rc, attrs, res); err != nil {
		return nil, geom.Affine{}, err
	}
	return rc, geom.Translate(v[0], v[1]), nil
}

func parseCircleShape(attrs map[string]string, res ResourceSet) (*Shape, geom.Affine, error) {
	var v [3]float64
	for i, key := range []string{"cx", "cy", "r"} {
		d, err := optionalDimension(attrs[key], 0)
		if err != nil {
			return nil, geom.Affine{}, err
		}
		v[i] = d
	}
	if v[2] <= 0 {
		return nil, geom.Affine{}, fmt.Errorf("circle 的半径必须为正数")
	}
	c := &Shape{Kind: ShapeCircle, R: v[2]}
	if err := applyStroke(c, attrs, res); err != nil {
		return nil, geom.Affine{}, err
	}
	return c, geom.Translate(v[0], v[1]), nil
}

func resolveStroke(attrs map[string]string, res ResourceSet) Color {
	for _, key := range []string{"color", "stroke"} {
		if v := attrs[key]; v != "" {
			return resolveColor(v, res)
		}
	}
	return Color{}
}

func applyStroke(s *Shape, attrs map[string]string, res ResourceSet) error {
	if v := attrs["stroke"]; v != "" {
		s.StrokeColor = resolveColor(v, res)
		s.StrokeWidth = 1
	}
	if v := attrs["stroke-width"]; v != "" {
		w, err := parseDimension(v, 0)
		if err != nil {
			return err
		}
		s.StrokeWidth = w
	}
	if v := attrs["fill"]; v != "" {
		c := resolveColor(v, res)
		s.FillColor = &c
	}
	return nil
}

// parseDimension 解析长度或相对 reference 的百分比，结果单位为 pt。
func parseDimension(value string, reference float64) (float64, error) {
	l, err := ParseLength(value)
	if err != nil {
		return 0, err
	}
	return l.Resolve(reference), nil
}

// optionalDimension 与 parseDimension 相同，但空值视为 0。
func optionalDimension(value string, reference float64) (float64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return parseDimension(value, reference)
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
