package extract

import (
	"log/slog"
	"math"
	"runtime"

	"github.com/ByLCY/wordbox/segment"
)

// DefaultResolution 是 72 DPI，即每 pt 一个像素。
const DefaultResolution = 1.0

// Options 是一次提取的配置，由 Option 函数组装。
type Options struct {
	Workers    int
	Resolution float64
	Filter     segment.Filter
	Classifier *segment.Classifier
	Logger     *slog.Logger
}

// Option 修改 Options。
type Option func(*Options)

// NewOptions 返回默认配置并依次应用 opts。
func NewOptions(opts ...Option) Options {
	o := Options{
		Workers:    runtime.NumCPU(),
		Resolution: DefaultResolution,
		Classifier: segment.Default,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithWorkers 设置并发处理页面的上限，小于 1 时按 1 处理。
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithResolution 设置每 pt 对应的像素数。
func WithResolution(res float64) Option {
	return func(o *Options) { o.Resolution = res }
}

func WithFilter(f segment.Filter) Option {
	return func(o *Options) { o.Filter = f }
}

func WithClassifier(c *segment.Classifier) Option {
	return func(o *Options) { o.Classifier = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func (o Options) validate() error {
	if math.IsNaN(o.Resolution) || math.IsInf(o.Resolution, 0) || o.Resolution <= 0 {
		return &ConfigError{Field: "resolution", Reason: "必须为正的有限数"}
	}
	return nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) classifier() *segment.Classifier {
	if o.Classifier != nil {
		return o.Classifier
	}
	return segment.Default
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}
