// Package binding 负责把 ${path.to.value} 占位符替换为外部数据中的值。
package binding

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// MissingError 表示严格模式下占位符路径在数据中不存在。
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("数据中不存在路径 %s", e.Path)
}

// Binder 持有绑定数据。零值可用，表示没有数据。
type Binder struct {
	data   any
	strict bool
}

// New 创建 Binder；strict 为 true 时缺失路径会返回 *MissingError。
func New(data any, strict bool) *Binder {
	return &Binder{data: data, strict: strict}
}

// Interpolate 替换 text 中的全部占位符。
// 非严格模式下缺失路径保留原占位符；没有数据时原样返回。
func (b *Binder) Interpolate(text string) (string, error) {
	if b == nil || b.data == nil {
		return text, nil
	}
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])
		if path == "" {
			return match
		}
		if val, ok := Resolve(b.data, path); ok {
			return fmt.Sprint(val)
		}
		if b.strict && firstErr == nil {
			firstErr = &MissingError{Path: path}
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Interpolate 以非严格模式替换占位符。
func Interpolate(text string, data any) string {
	out, _ := New(data, false).Interpolate(text)
	return out
}

// Resolve 按 a.b[0].c 形式的路径在 data 中取值。
// 支持 map[string]any、[]any 以及通过反射访问的结构体字段与切片。
func Resolve(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes := parseSegment(segment)
		if name != "" {
			var ok bool
			current, ok = descendMap(current, name)
			if !ok {
				return nil, false
			}
		}
		for _, idxStr := range indexes {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			var ok bool
			current, ok = descendArray(current, idx)
			if !ok {
				return nil, false
			}
		}
	}
	return current, true
}

func parseSegment(segment string) (string, []string) {
	name := segment
	indexes := []string{}
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 {
			if rest[0] != '[' {
				break
			}
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return strings.TrimSpace(name), indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case nil:
		return nil, false
	}
	v := reflect.Indirect(reflect.ValueOf(current))
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true
	case reflect.Struct:
		f := v.FieldByNameFunc(func(name string) bool { return strings.EqualFold(name, key) })
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}
		return f.Interface(), true
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	if c, ok := current.([]any); ok {
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	}
	if current == nil {
		return nil, false
	}
	v := reflect.Indirect(reflect.ValueOf(current))
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	if idx < 0 || idx >= v.Len() {
		return nil, false
	}
	return v.Index(idx).Interface(), true
}
