// Package fonts 提供内置字体数据与基于路径的字体加载。
//
// 内置字体来自 golang.org/x/image/font/gofont，使用 "builtin:<name>" 或
// "embed:<name>" 引用，例如 "builtin:go-regular"。
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultSrc 是未声明字体时使用的字体来源。
const DefaultSrc = "builtin:go-regular"

var builtin = map[string][]byte{
	"go-regular":     goregular.TTF,
	"go-medium":      gomedium.TTF,
	"go-bold":        gobold.TTF,
	"go-italic":      goitalic.TTF,
	"go-bold-italic": gobolditalic.TTF,
	"go-mono":        gomono.TTF,
}

// Builtin 返回内置字体名称列表（已排序）。
func Builtin() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin 判断 src 是否引用内置字体。
func IsBuiltin(src string) bool {
	return strings.HasPrefix(src, "builtin:") || strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "embed:")
}

// Load 返回 src 对应的 TTF 数据。内置字体按名称查找；其它值视为文件路径，
// 相对路径以 baseDir 为根。
func Load(src, baseDir string) ([]byte, error) {
	if src == "" {
		src = DefaultSrc
	}
	if IsBuiltin(src) {
		name := src[strings.IndexByte(src, ':')+1:]
		name = strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
		data, ok := builtin[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置字体 %s（可用：%s）", src, strings.Join(Builtin(), ", "))
		}
		return data, nil
	}
	path := src
	if !filepath.IsAbs(path) {
		if baseDir == "" {
			return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin:）", src)
		}
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", src, err)
	}
	return data, nil
}
