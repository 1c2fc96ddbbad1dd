package layout

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/wordbox/dsl"
)

// CompileError 表示源码无法编译为文档，Line/Column 为 0 时表示位置未知。
type CompileError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *CompileError) Error() string {
	switch {
	case e.Line > 0 && e.Path != "":
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("%d:%d: %v", e.Line, e.Column, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *CompileError) Unwrap() error { return e.Err }

func errorAt(pos lexer.Position, format string, args ...any) error {
	return &CompileError{Path: pos.Filename, Line: pos.Line, Column: pos.Column, Err: fmt.Errorf(format, args...)}
}

// wrapAt 给尚无位置的错误补上命令位置。
func wrapAt(pos lexer.Position, err error) error {
	if err == nil {
		return nil
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return err
	}
	return &CompileError{Path: pos.Filename, Line: pos.Line, Column: pos.Column, Err: err}
}

// asCompileError 把语法错误与构建错误统一为 *CompileError。
func asCompileError(path string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		if ce.Path == "" {
			ce.Path = path
		}
		return ce
	}
	var se *dsl.Error
	if errors.As(err, &se) {
		return &CompileError{Path: path, Line: se.Pos.Line, Column: se.Pos.Column, Err: errors.New(se.Message)}
	}
	return &CompileError{Path: path, Err: err}
}
