// Package extract 遍历编译后的帧树，把文本切分为词、分隔符与空白片段，
// 并将每个片段的外框投影到像素空间。
package extract

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/wordbox/layout"
)

// Run 并发遍历文档各页并按页序合并结果。分辨率无效时在遍历前返回 *ConfigError；
// 任一页失败时取消其余页面并只返回错误。
func Run(ctx context.Context, doc *layout.Document, opts ...Option) ([]Record, error) {
	o := NewOptions(opts...)
	if err := o.validate(); err != nil {
		return nil, err
	}
	if doc == nil || len(doc.Pages) == 0 {
		return []Record{}, nil
	}
	log := o.logger()

	pages := make([][]Record, len(doc.Pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers())
	for i := range doc.Pages {
		g.Go(func() error {
			words, err := walkPage(gctx, i, &doc.Pages[i], o)
			if err != nil {
				return err
			}
			recs := make([]Record, len(words))
			for j, w := range words {
				recs[j] = w.Project(o.Resolution)
			}
			pages[i] = recs
			log.Debug("page extracted", "page", i, "records", len(recs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, recs := range pages {
		total += len(recs)
	}
	out := make([]Record, 0, total)
	for _, recs := range pages {
		out = append(out, recs...)
	}
	return out, nil
}
