package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/wordbox/binding"
	"github.com/ByLCY/wordbox/dsl"
	"github.com/ByLCY/wordbox/geom"
)

// 以下长度单位均为 pt。
const (
	blockSpacing       = 8.5
	defaultTableRowGap = 0.0
	cellPadding        = 3.4
	defaultFontSize    = 12.0
	defaultLineHeight  = 1.4
)

// Build 根据 DSL AST 生成各页面的帧树。
func Build(doc *dsl.Document, opts BuildOptions) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}

	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	meta := collectMeta(doc)
	binder := binding.New(opts.Data, opts.StrictData)

	var pages []Page
	for _, section := range doc.Sections {
		if section.Page == nil {
			continue
		}
		built, err := buildPages(section.Page, len(pages), res, binder, opts.Typesetter)
		if err != nil {
			return nil, err
		}
		pages = append(pages, built...)
	}
	if len(pages) == 0 {
		return nil, errorAt(doc.Pos, "文档中缺少 page 段落")
	}
	opts.logger().Debug("layout built", "doc", doc.Name, "pages", len(pages))

	return &Document{
		Pages:     pages,
		Resources: res,
		Meta:      meta,
	}, nil
}

// buildPages 排版一个 page 段落，内容溢出时续排到新页面。firstIndex 为首页在文档中的序号。
func buildPages(section *dsl.PageSection, firstIndex int, res ResourceSet, binder *binding.Binder, ts Typesetter) ([]Page, error) {
	width, height, err := resolvePageSize(section.Spec)
	if err != nil {
		return nil, wrapAt(section.Pos, err)
	}
	if section.Block == nil {
		return nil, errorAt(section.Pos, "page 段落缺少内容")
	}

	margin := resolveMargin(section.Spec.Params)
	collector := &pageCollector{
		width:      width,
		height:     height,
		margin:     margin,
		firstIndex: firstIndex,
		res:        res,
		binder:     binder,
		typesetter: ts,
	}

	// 先测量页眉/页脚，确定内容区域后再开第一页。
	for _, st := range section.Block.Statements {
		if st.Command == nil {
			continue
		}
		switch st.Command.Name {
		case "header", "footer":
			d, err := collector.measureDecoration(st.Command)
			if err != nil {
				return nil, err
			}
			if st.Command.Name == "header" {
				collector.header = d
			} else {
				collector.footer = d
			}
		}
	}

	first, err := collector.newPage()
	if err != nil {
		return nil, err
	}

	// 根上下文从内容区域顶部开始排版。
	root := &flowContext{
		baseX:          margin.Left,
		baseY:          collector.contentTop(),
		width:          width - margin.Left - margin.Right,
		cursorY:        collector.contentTop(),
		page:           first,
		container:      first.Root,
		binder:         binder,
		typesetter:     ts,
		collector:      collector,
		allowPageBreak: true,
		textWrap:       "anywhere",
	}

	if err := processBlock(section.Block, root, res); err != nil {
		return nil, err
	}
	return collector.allPages(), nil
}

// processBlock 依次处理 block 内的命令。顶层的字符串字面量视作一段默认样式的文本。
func processBlock(block *dsl.Block, ctx *flowContext, res ResourceSet) error {
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			if err := handleLiteral(stmt.Text, ctx, res); err != nil {
				return err
			}
			continue
		}
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		var err error
		switch strings.ToLower(cmd.Name) {
		case "flow":
			err = handleFlow(cmd, ctx, res)
		case "absolute":
			err = handleAbsolute(cmd, ctx, res)
		case "group":
			err = handleGroup(cmd, ctx, res)
		case "text":
			err = handleText(cmd, ctx, res)
		case "table":
			err = handleTable(cmd, ctx, res)
		case "line", "rect", "circle":
			err = handleShape(cmd, ctx, res)
		case "pagebreak":
			if !ctx.allowPageBreak {
				return errorAt(cmd.Pos, "pagebreak 只能出现在可分页的流中")
			}
			err = ctx.pageBreak()
		case "header", "footer":
			// 已在 buildPages 中处理
		default:
			// 其余命令暂未实现，忽略即可
		}
		if err != nil {
			return wrapAt(cmd.Pos, err)
		}
	}
	return nil
}

func normalizeWrap(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "auto", "anywhere", "overflow-wrap:anywhere", "overflow-anywhere":
		return "anywhere"
	case "break-word", "word-break:break-word":
		return "break-word"
	case "nowrap", "no-wrap":
		return "nowrap"
	case "normal":
		return "normal"
	default:
		return "anywhere"
	}
}

func normalizeAlign(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "left", "start":
		return "left"
	case "center", "middle":
		return "center"
	case "right", "end":
		return "right"
	default:
		return ""
	}
}

func handleFlow(cmd *dsl.Command, parent *flowContext, res ResourceSet) error {
	if cmd.Block == nil {
		return fmt.Errorf("flow 语句缺少子内容")
	}
	styleName, attrs := parseArgs(cmd.Args, false)
	attrs = mergeStyleAttributes(styleName, attrs, res.Styles)
	width := parent.width
	if v := attrs["width"]; v != "" {
		w, err := parseDimension(v, parent.width)
		if err != nil {
			return err
		}
		if w > 0 && w <= parent.width {
			width = w
		}
	}
	offset := alignOffset(parent.width, width, attrs["align"])

	child := parent.sub(parent.baseX+offset, parent.cursorY, width)
	if a := normalizeAlign(attrs["align"]); a != "" {
		child.textAlign = a
	}
	if v, ok := attrs["wrap"]; ok && strings.TrimSpace(v) != "" {
		child.textWrap = normalizeWrap(v)
	}

	if err := processBlock(cmd.Block, child, res); err != nil {
		return err
	}
	if child.cursorY > parent.cursorY {
		parent.cursorY = child.cursorY + blockSpacing
	}
	return nil
}

func handleAbsolute(cmd *dsl.Command, parent *flowContext, res ResourceSet) error {
	if cmd.Block == nil {
		return fmt.Errorf("absolute 语句缺少子内容")
	}
	styleName, attrs := parseArgs(cmd.Args, false)
	attrs = mergeStyleAttributes(styleName, attrs, res.Styles)
	width := parent.width
	if v := attrs["width"]; v != "" {
		w, err := parseDimension(v, parent.width)
		if err != nil {
			return err
		}
		if w > 0 {
			width = w
		}
	}
	offsetX, err := optionalDimension(attrs["x"], parent.width)
	if err != nil {
		return err
	}
	offsetY, err := optionalDimension(attrs["y"], parent.width)
	if err != nil {
		return err
	}

	child := parent.sub(parent.baseX+offsetX, parent.baseY+offsetY, width)
	child.allowPageBreak = false
	return processBlock(cmd.Block, child, res)
}

// handleGroup 把子内容放进一个带变换的分组帧。
// 分组按变换后内容包络的左上角对齐到当前光标，光标随包络高度下移。
func handleGroup(cmd *dsl.Command, parent *flowContext, res ResourceSet) error {
	if cmd.Block == nil {
		return fmt.Errorf("group 语句缺少子内容")
	}
	styleName, attrs := parseArgs(cmd.Args, false)
	attrs = mergeStyleAttributes(styleName, attrs, res.Styles)
	width := parent.width
	if v := attrs["width"]; v != "" {
		w, err := parseDimension(v, parent.width)
		if err != nil {
			return err
		}
		if w > 0 {
			width = w
		}
	}
	linear, err := groupTransform(attrs)
	if err != nil {
		return err
	}
	offsetX, err := optionalDimension(attrs["x"], parent.width)
	if err != nil {
		return err
	}
	offsetY, err := optionalDimension(attrs["y"], parent.width)
	if err != nil {
		return err
	}

	// 位置取决于内容包络：先排在草稿页上，定位后整体移入当前页面。
	scratch := NewPage(0, parent.page.Width, parent.page.Height)
	draft := parent.sub(0, 0, width)
	draft.page, draft.container = scratch, scratch.Root
	draft.allowPageBreak = false
	if err := processBlock(cmd.Block, draft, res); err != nil {
		return err
	}
	var env geom.Rect
	if bounds, ok := scratch.Bounds(scratch.Root); ok {
		env = bounds.Transform(linear)
	}

	if err := parent.ensureSpace(offsetY + env.Height()); err != nil {
		return err
	}
	x := parent.baseX + offsetX
	y := parent.cursorY + offsetY
	m := geom.Translate(x-env.MinX, y-env.MinY).Then(linear)
	if _, err := parent.page.Graft(parent.container, m, scratch, scratch.Root); err != nil {
		return err
	}
	parent.cursorY = y + env.Height() + blockSpacing
	return nil
}

// groupTransform 由 rotate/scale/skew 属性组成分组的线性部分：先错切，再缩放，最后旋转。
func groupTransform(attrs map[string]string) (geom.Affine, error) {
	num := func(key string, def float64) (float64, error) {
		v := strings.TrimSpace(attrs[key])
		if v == "" {
			return def, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(v, "x"), "deg"), 64)
		if err != nil {
			return 0, fmt.Errorf("%s 的值 %q 不是数字", key, v)
		}
		return f, nil
	}
	rotate, err := num("rotate", 0)
	if err != nil {
		return geom.Affine{}, err
	}
	scale, err := num("scale", 1)
	if err != nil {
		return geom.Affine{}, err
	}
	sx, err := num("scale-x", scale)
	if err != nil {
		return geom.Affine{}, err
	}
	sy, err := num("scale-y", scale)
	if err != nil {
		return geom.Affine{}, err
	}
	kx, err := num("skew-x", 0)
	if err != nil {
		return geom.Affine{}, err
	}
	ky, err := num("skew-y", 0)
	if err != nil {
		return geom.Affine{}, err
	}
	return geom.Rotate(rotate).Then(geom.Scale(sx, sy)).Then(geom.Skew(kx, ky)), nil
}

func handleText(cmd *dsl.Command, ctx *flowContext, res ResourceSet) error {
	if cmd.Block == nil {
		return fmt.Errorf("text 语句缺少文本块")
	}
	styleName, attrs := parseArgs(cmd.Args, true)
	attrs = mergeStyleAttributes(styleName, attrs, res.Styles)
	raw := extractText(cmd.Block)
	if raw == "" {
		return fmt.Errorf("text 语句缺少文本内容")
	}
	return ctx.flowText(styleName, attrs, raw, res)
}

func handleLiteral(lit *dsl.TextLiteral, ctx *flowContext, res ResourceSet) error {
	if lit.Value == "" {
		return nil
	}
	return wrapAt(lit.Pos, ctx.flowText("", map[string]string{}, string(lit.Value), res))
}

// flowText 排版一段文本并放到当前光标处，空间不足时先翻页。
func (ctx *flowContext) flowText(styleName string, attrs map[string]string, raw string, res ResourceSet) error {
	// 未显式设置 align 时继承自父 flow
	if strings.TrimSpace(attrs["align"]) == "" && ctx.textAlign != "" {
		attrs["align"] = ctx.textAlign
	}
	wrap := ctx.textWrap
	if v, ok := attrs["wrap"]; ok && strings.TrimSpace(v) != "" {
		wrap = normalizeWrap(v)
	}
	content, err := ctx.binder.Interpolate(raw)
	if err != nil {
		return err
	}
	tb, err := composeText(styleName, attrs, content, ctx.width, res, ctx.typesetter, wrap)
	if err != nil {
		return err
	}
	if err := ctx.ensureSpace(tb.height); err != nil {
		return err
	}
	if err := placeText(ctx.page, ctx.container, tb, ctx.baseX, ctx.cursorY); err != nil {
		return err
	}
	ctx.cursorY += tb.height + blockSpacing
	return nil
}

// textBlock 是排版完成、尚未放置的文本块。
type textBlock struct {
	lines  []TextLine
	font   FontResource
	size   float64
	color  Color
	align  string
	width  float64
	height float64
}

func composeText(style string, attrs map[string]string, content string, width float64, res ResourceSet, ts Typesetter, wrap string) (textBlock, error) {
	attrs = mergeStyleAttributes(style, attrs, res.Styles)
	fontName := attrs["font"]
	if fontName == "" {
		fontName = style
	}
	if fontName == "" {
		fontName = "Body"
	}

	fontSize := defaultFontSize
	if v := strings.TrimSpace(attrs["size"]); v != "" {
		l, err := ParseLength(v)
		if err != nil {
			return textBlock{}, fmt.Errorf("字号: %w", err)
		}
		if l.Points() <= 0 {
			return textBlock{}, fmt.Errorf("字号必须为正数: %s", v)
		}
		fontSize = l.Points()
	}
	lh, err := ParseLineHeight(attrs["line-height"])
	if err != nil {
		return textBlock{}, err
	}
	lineHeight := lh.Resolve(fontSize)

	fontRes, err := resolveFontResource(fontName, res)
	if err != nil {
		return textBlock{}, err
	}
	lines, err := ts.LayoutLines(content, width, fontRes, fontSize, lineHeight, wrap)
	if err != nil {
		return textBlock{}, err
	}
	if len(lines) == 0 {
		lines = []TextLine{{}}
	}

	total := 0.0
	defaultLeading := max(lineHeight-fontSize, 0)
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = fontSize
		}
		if lines[i].Ascent <= 0 && lines[i].Descent <= 0 {
			lines[i].Ascent = lines[i].Height * 0.8
			lines[i].Descent = lines[i].Height * 0.2
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = defaultLeading
		}
		total += lines[i].GapBefore + lines[i].Height
	}

	return textBlock{
		lines:  lines,
		font:   fontRes,
		size:   fontSize,
		color:  resolveColor(attrs["color"], res),
		align:  normalizeAlign(attrs["align"]),
		width:  width,
		height: total,
	}, nil
}

// placeText 在 parent 下放置文本块：块本身是位于 (x,y) 的分组帧，
// 每一行是原点在基线左端的文本帧。没有字形的空行只占高度，不生成帧。
func placeText(p *Page, parent FrameID, tb textBlock, x, y float64) error {
	grp, err := p.AddGroup(parent, geom.Translate(x, y))
	if err != nil {
		return err
	}
	cursor := 0.0
	for _, ln := range tb.lines {
		cursor += ln.GapBefore
		if len(ln.Glyphs) > 0 {
			run := &TextRun{
				Text:    ln.Content,
				Font:    tb.font,
				Size:    tb.size,
				Ascent:  ln.Ascent,
				Descent: ln.Descent,
				Color:   tb.color,
				Glyphs:  ln.Glyphs,
			}
			dx := alignOffset(tb.width, ln.Width, tb.align)
			if _, err := p.AddText(grp, geom.Translate(dx, cursor+ln.Ascent), run); err != nil {
				return err
			}
		}
		cursor += ln.Height
	}
	return nil
}

func handleTable(cmd *dsl.Command, ctx *flowContext, res ResourceSet) error {
	if cmd.Block == nil {
		return fmt.Errorf("table 语句缺少内容")
	}
	styleName, attrs := parseArgs(cmd.Args, false)
	attrs = mergeStyleAttributes(styleName, attrs, res.Styles)

	width := ctx.width
	if v := attrs["width"]; v != "" {
		w, err := parseDimension(v, ctx.width)
		if err != nil {
			return err
		}
		if w > 0 {
			width = w
		}
	}
	rowGap := defaultTableRowGap
	for _, key := range []string{"row-gap", "rowGap"} {
		if v := attrs[key]; v != "" {
			g, err := parseDimension(v, ctx.width)
			if err != nil {
				return err
			}
			if g >= 0 {
				rowGap = g
			}
			break
		}
	}
	columns := 0
	if v := attrs["columns"]; v != "" {
		c, err := strconv.Atoi(v)
		if err != nil || c <= 0 {
			return fmt.Errorf("columns 必须为正整数: %s", v)
		}
		columns = c
	}

	var rowCmds []*dsl.Command
	for _, stmt := range cmd.Block.Statements {
		if stmt.Command == nil {
			continue
		}
		if name := stmt.Command.Name; name == "header" || name == "row" {
			rowCmds = append(rowCmds, stmt.Command)
			if n := countCells(stmt.Command); n > columns && attrs["columns"] == "" {
				columns = n
			}
		}
	}
	if columns == 0 {
		return fmt.Errorf("table 需要至少一个单元格")
	}
	colWidth := width / float64(columns)

	rows := make([]tableRow, 0, len(rowCmds))
	height := 0.0
	for i, rc := range rowCmds {
		row, err := composeTableRow(rc, ctx, res, columns, colWidth)
		if err != nil {
			return wrapAt(rc.Pos, err)
		}
		rows = append(rows, row)
		height += row.height
		if i > 0 {
			height += rowGap
		}
	}

	if err := ctx.ensureSpace(height); err != nil {
		return err
	}
	grp, err := ctx.page.AddGroup(ctx.container, geom.Translate(ctx.baseX, ctx.cursorY))
	if err != nil {
		return err
	}
	border := Color{R: 200, G: 200, B: 200}
	y := 0.0
	for _, row := range rows {
		for i, cell := range row.cells {
			x := float64(i) * colWidth
			frame := &Shape{Kind: ShapeRect, Width: colWidth, Height: row.height, StrokeColor: border, StrokeWidth: 0.5}
			if row.header {
				frame.FillColor = &Color{R: 248, G: 248, B: 248}
			}
			if _, err := ctx.page.AddShape(grp, geom.Translate(x, y), frame); err != nil {
				return err
			}
			if err := placeText(ctx.page, grp, cell, x+cellPadding, y+cellPadding); err != nil {
				return err
			}
		}
		y += row.height + rowGap
	}
	ctx.cursorY += height + blockSpacing
	return nil
}

type tableRow struct {
	header bool
	cells  []textBlock
	height float64
}

func countCells(cmd *dsl.Command) int {
	if cmd.Block == nil {
		return 0
	}
	n := 0
	for _, stmt := range cmd.Block.Statements {
		if stmt.Command != nil && stmt.Command.Name == "cell" {
			n++
		}
	}
	return n
}

func composeTableRow(cmd *dsl.Command, ctx *flowContext, res ResourceSet, columns int, colWidth float64) (tableRow, error) {
	row := tableRow{header: cmd.Name == "header"}
	if cmd.Block == nil {
		return row, fmt.Errorf("row/header 缺少 cell 定义")
	}
	cellWidth := colWidth - 2*cellPadding
	if cellWidth <= 0 {
		cellWidth = colWidth
	}
	maxHeight := 0.0
	for _, stmt := range cmd.Block.Statements {
		if stmt.Command == nil || stmt.Command.Name != "cell" {
			continue
		}
		if len(row.cells) == columns {
			return row, errorAt(stmt.Command.Pos, "单元格数量超过列数 %d", columns)
		}
		styleName, attrs := parseArgs(stmt.Command.Args, true)
		attrs = mergeStyleAttributes(styleName, attrs, res.Styles)
		if row.header && attrs["align"] == "" {
			attrs["align"] = "center"
		}
		content, err := ctx.binder.Interpolate(extractText(stmt.Command.Block))
		if err != nil {
			return row, wrapAt(stmt.Command.Pos, err)
		}
		tb, err := composeText(styleName, attrs, content, cellWidth, res, ctx.typesetter, normalizeWrap(attrs["wrap"]))
		if err != nil {
			return row, wrapAt(stmt.Command.Pos, err)
		}
		row.cells = append(row.cells, tb)
		maxHeight = max(maxHeight, tb.height)
	}
	if len(row.cells) == 0 {
		return row, fmt.Errorf("row/header 中至少需要一个 cell")
	}
	row.height = maxHeight + 2*cellPadding
	return row, nil
}

func handleShape(cmd *dsl.Command, ctx *flowContext, res ResourceSet) error {
	_, attrs := parseArgs(cmd.Args, false)
	var (
		shape *Shape
		at    geom.Affine
		err   error
	)
	switch strings.ToLower(cmd.Name) {
	case "line":
		shape, at, err = parseLineShape(attrs, res)
	case "rect":
		shape, at, err = parseRectShape(attrs, res)
	case "circle":
		shape, at, err = parseCircleShape(attrs, res)
	}
	if err != nil {
		return err
	}
	_, err = ctx.page.AddShape(ctx.container, at, shape)
	return err
}

// pageCollector 管理一个 page 段落产生的页面序列。
type pageCollector struct {
	width      float64
	height     float64
	margin     Margin
	firstIndex int
	pages      []*Page

	// 页眉/页脚在每次开新页时重新排入该页。
	header *decoration
	footer *decoration

	res        ResourceSet
	binder     *binding.Binder
	typesetter Typesetter
}

// decoration 是测量过的页眉或页脚。
type decoration struct {
	cmd    *dsl.Command
	header bool
	height float64 // 占用的区域高度
	baseY  float64 // 内容顶部相对页面顶部的位置
}

func (pc *pageCollector) newPage() (*Page, error) {
	p := NewPage(pc.firstIndex+len(pc.pages), pc.width, pc.height)
	p.Margin = pc.margin
	pc.pages = append(pc.pages, p)
	for _, d := range []*decoration{pc.header, pc.footer} {
		if d == nil {
			continue
		}
		grp, err := p.AddGroup(p.Root, geom.Translate(0, d.baseY))
		if err != nil {
			return nil, err
		}
		if err := processBlock(d.cmd.Block, pc.decorationContext(p, grp, d.header), pc.res); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (pc *pageCollector) decorationContext(p *Page, container FrameID, header bool) *flowContext {
	ctx := &flowContext{
		baseX:      pc.margin.Left,
		width:      pc.width - pc.margin.Left - pc.margin.Right,
		page:       p,
		container:  container,
		binder:     pc.binder,
		typesetter: pc.typesetter,
		textWrap:   "anywhere",
	}
	if header {
		// 页眉文本默认居中
		ctx.textAlign = "center"
	}
	return ctx
}

// measureDecoration 在草稿页上排一遍页眉/页脚，得到其高度与纵向基准。
// 页眉内容底部贴合区域底边；页脚区域从页面底部向上占用。
func (pc *pageCollector) measureDecoration(cmd *dsl.Command) (*decoration, error) {
	if cmd.Block == nil {
		return nil, errorAt(cmd.Pos, "%s 缺少内容", cmd.Name)
	}
	d := &decoration{cmd: cmd, header: cmd.Name == "header"}
	scratch := NewPage(0, pc.width, pc.height)
	ctx := pc.decorationContext(scratch, scratch.Root, d.header)
	if err := processBlock(cmd.Block, ctx, pc.res); err != nil {
		return nil, err
	}
	contentHeight := ctx.cursorY
	if contentHeight > 0 {
		contentHeight -= blockSpacing
	}
	d.height = contentHeight
	_, attrs := parseArgs(cmd.Args, false)
	if v := attrs["height"]; v != "" {
		h, err := parseDimension(v, pc.height)
		if err != nil {
			return nil, wrapAt(cmd.Pos, err)
		}
		if h > 0 {
			d.height = h
		}
	}
	if d.header {
		d.baseY = max(d.height-contentHeight, 0)
	} else {
		d.baseY = pc.height - d.height
	}
	return d, nil
}

// contentTop 是内容区域顶部：max(上边距, 页眉高度)。
func (pc *pageCollector) contentTop() float64 {
	if pc.header != nil && pc.header.height > pc.margin.Top {
		return pc.header.height
	}
	return pc.margin.Top
}

// contentBottom 是内容区域底部：页面高度 - max(下边距, 页脚高度)。
func (pc *pageCollector) contentBottom() float64 {
	b := pc.margin.Bottom
	if pc.footer != nil && pc.footer.height > b {
		b = pc.footer.height
	}
	return pc.height - b
}

func (pc *pageCollector) allPages() []Page {
	out := make([]Page, len(pc.pages))
	for i, p := range pc.pages {
		out[i] = *p
	}
	return out
}

type flowContext struct {
	baseX   float64
	baseY   float64
	width   float64
	cursorY float64

	// page/container 是新内容挂载的位置；翻页后随父上下文更新。
	page      *Page
	container FrameID

	binder         *binding.Binder
	typesetter     Typesetter
	parent         *flowContext
	collector      *pageCollector
	allowPageBreak bool
	// textAlign 继承自父 flow 的对齐方式（left/center/right），用于未显式声明 align 的子 text。
	textAlign string
	// textWrap 继承自父 flow 的折行方式（anywhere(默认)/break-word/nowrap/normal）。
	textWrap string
}

// sub 派生一个子上下文，继承挂载位置与文本设置。
func (ctx *flowContext) sub(baseX, baseY, width float64) *flowContext {
	return &flowContext{
		baseX:          baseX,
		baseY:          baseY,
		width:          width,
		cursorY:        baseY,
		page:           ctx.page,
		container:      ctx.container,
		binder:         ctx.binder,
		typesetter:     ctx.typesetter,
		parent:         ctx,
		collector:      ctx.collector,
		allowPageBreak: ctx.allowPageBreak,
		textAlign:      ctx.textAlign,
		textWrap:       ctx.textWrap,
	}
}

func (ctx *flowContext) ensureSpace(height float64) error {
	if !ctx.allowPageBreak || ctx.collector == nil {
		return nil
	}
	if ctx.cursorY+height <= ctx.collector.contentBottom() {
		return nil
	}
	// 已在页首仍放不下时不再翻页，允许溢出。
	if ctx.cursorY <= ctx.collector.contentTop() {
		return nil
	}
	return ctx.pageBreak()
}

func (ctx *flowContext) pageBreak() error {
	if ctx.collector == nil {
		return nil
	}
	if ctx.parent != nil {
		if err := ctx.parent.pageBreak(); err != nil {
			return err
		}
		ctx.page, ctx.container = ctx.parent.page, ctx.parent.container
		ctx.baseY = ctx.parent.cursorY
		ctx.cursorY = ctx.baseY
		return nil
	}
	p, err := ctx.collector.newPage()
	if err != nil {
		return err
	}
	ctx.page, ctx.container = p, p.Root
	ctx.baseX = ctx.collector.margin.Left
	// 新页从内容区域顶部开始（考虑页眉高度）
	ctx.baseY = ctx.collector.contentTop()
	ctx.cursorY = ctx.baseY
	return nil
}

func alignOffset(container, width float64, align string) float64 {
	if container <= width {
		return 0
	}
	switch normalizeAlign(align) {
	case "center":
		return (container - width) / 2
	case "right":
		return container - width
	default:
		return 0
	}
}
