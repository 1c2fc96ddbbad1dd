package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/wordbox/extract"
	"github.com/ByLCY/wordbox/layout"
	"github.com/ByLCY/wordbox/output"
	"github.com/ByLCY/wordbox/renderer"
	canvasrenderer "github.com/ByLCY/wordbox/renderer/canvas"
	"github.com/ByLCY/wordbox/segment"
	"github.com/ByLCY/wordbox/typeset"
)

const (
	exitOK = iota
	exitFailure // 参数错误或其它失败
	exitConfig
	exitCompile
	exitMalformed
	exitIO
)

// 超过 100cm 的页面不做栅格化。
const maxRenderSide = 1000 * layout.MmToPt

type options struct {
	input       string
	output      string
	render      string
	renderBoxes string
	debug       string

	filter     segment.Filter
	delimiters string
	dpi        float64
	workers    int
	data       string
	strictData bool
	verbose    bool
}

// configError 表示命令行参数或输入输出路径不可用。
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func configErrorf(format string, args ...any) error {
	return &configError{err: fmt.Errorf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 解析参数并运行，返回进程退出码。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "wordbox: %v\n", err)
		return exitFailure
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	n, err := run(ctx, opts, logger)
	if err != nil {
		fmt.Fprintf(stderr, "wordbox: %v\n", err)
		return exitCode(err)
	}
	fmt.Fprintf(stdout, "已写出 %d 条记录：%s\n", n, opts.output)
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("wordbox", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "用法: wordbox [flags] <input> <output.json>\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&o.render, "render", "", "页面渲染 PNG 输出路径")
	fs.StringVar(&o.renderBoxes, "render-boxes", "", "带外框的渲染 PNG 输出路径")
	fs.StringVar(&o.debug, "debug", "", "布局调试 JSON 输出路径")
	fs.BoolVar(&o.filter.IncludeDelimiters, "include-delimiters", false, "输出分隔符片段")
	fs.BoolVar(&o.filter.IncludeWhitespace, "include-whitespace", false, "输出空白片段")
	fs.StringVar(&o.delimiters, "delimiters", "", "额外的分隔符字符")
	fs.Float64Var(&o.dpi, "dpi", 72, "渲染分辨率（DPI）")
	fs.IntVar(&o.workers, "workers", runtime.NumCPU(), "并发处理的页面数")
	fs.StringVar(&o.data, "data", "", "绑定到 ${...} 占位符的 JSON 数据")
	fs.BoolVar(&o.strictData, "strict-data", false, "占位符缺少数据时报错")
	fs.BoolVar(&o.verbose, "v", false, "输出调试日志")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return o, fmt.Errorf("需要输入文件与输出 JSON 路径，实际 %d 个参数", fs.NArg())
	}
	o.input, o.output = fs.Arg(0), fs.Arg(1)
	return o, nil
}

// run 串联编译、提取、渲染与输出，返回写出的记录数。
func run(ctx context.Context, o options, logger *slog.Logger) (int, error) {
	source, err := os.ReadFile(o.input)
	if err != nil {
		return 0, configErrorf("无法读取输入文件 %s: %w", o.input, err)
	}
	var data any
	if o.data != "" {
		if err := json.Unmarshal([]byte(o.data), &data); err != nil {
			return 0, configErrorf("解析 data JSON 失败: %w", err)
		}
	}
	res := o.dpi / 72
	if math.IsNaN(res) || math.IsInf(res, 0) || res <= 0 {
		return 0, configErrorf("dpi 必须为正数，实际 %v", o.dpi)
	}
	for _, p := range []string{o.output, o.render, o.renderBoxes, o.debug} {
		if p == "" {
			continue
		}
		if err := checkWritable(p); err != nil {
			return 0, err
		}
	}

	doc, err := layout.Compile(o.input, string(source), layout.BuildOptions{
		Typesetter: typeset.New(filepath.Dir(o.input)),
		Logger:     logger,
		Data:       data,
		StrictData: o.strictData,
	})
	if err != nil {
		return 0, err
	}
	logger.Debug("document compiled", "pages", len(doc.Pages))

	rendering := o.render != "" || o.renderBoxes != ""
	if rendering {
		for i, p := range doc.Pages {
			if p.Width > maxRenderSide || p.Height > maxRenderSide {
				return 0, configErrorf("第 %d 页尺寸 %.0fx%.0fpt 超过 100cm，无法渲染", i, p.Width, p.Height)
			}
		}
	}

	recs, err := extract.Run(ctx, doc,
		extract.WithResolution(res),
		extract.WithFilter(o.filter),
		extract.WithClassifier(segment.NewClassifier(o.delimiters)),
		extract.WithWorkers(o.workers),
		extract.WithLogger(logger),
	)
	if err != nil {
		return 0, err
	}

	files := []output.File{output.JSONFile(o.output, recs)}
	if o.debug != "" {
		files = append(files, output.File{Path: o.debug, Write: func(w io.Writer) error {
			return layout.WriteDebugJSON(w, doc)
		}})
	}
	if rendering {
		r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
			BaseDir: filepath.Dir(o.input),
			Logger:  logger,
		})
		pages, err := rasterizeAll(ctx, r, doc, res, o.workers)
		if err != nil {
			return 0, err
		}
		// 页间留 1pt 黑色间隔
		gap := max(1, int(math.Round(res)))
		merged, offsets := output.Merge(pages, gap, color.Black)
		if o.render != "" {
			files = append(files, output.PNGFile(o.render, merged))
		}
		if o.renderBoxes != "" {
			boxed := output.Overlay(merged, recs, output.OverlayOptions{Offsets: offsets})
			files = append(files, output.PNGFile(o.renderBoxes, boxed))
		}
	}

	if err := output.Commit(files...); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// checkWritable 创建 path 的父目录，并确认可以在其中写入且 path 不是目录。
func checkWritable(path string) error {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return configErrorf("输出路径 %s 是目录", path)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return configErrorf("创建输出目录失败: %w", err)
	}
	f, err := os.CreateTemp(dir, ".wordbox-check-*")
	if err != nil {
		return configErrorf("输出目录 %s 不可写: %w", dir, err)
	}
	f.Close()
	if err := os.Remove(f.Name()); err != nil {
		return configErrorf("清理检查文件失败: %w", err)
	}
	return nil
}

func rasterizeAll(ctx context.Context, r renderer.Rasterizer, doc *layout.Document, res float64, workers int) ([]*image.RGBA, error) {
	pages := make([]*image.RGBA, len(doc.Pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i := range doc.Pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := r.Rasterize(&doc.Pages[i], res)
			if err != nil {
				return fmt.Errorf("渲染第 %d 页失败: %w", i, err)
			}
			pages[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func exitCode(err error) int {
	var (
		cfg       *configError
		extCfg    *extract.ConfigError
		compile   *layout.CompileError
		malformed *extract.MalformedLayoutError
		ioErr     *output.IOError
	)
	switch {
	case errors.As(err, &cfg), errors.As(err, &extCfg):
		return exitConfig
	case errors.As(err, &compile):
		return exitCompile
	case errors.As(err, &malformed):
		return exitMalformed
	case errors.As(err, &ioErr):
		return exitIO
	default:
		return exitFailure
	}
}
