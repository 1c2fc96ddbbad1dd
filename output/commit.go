package output

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ByLCY/wordbox/extract"
)

// IOError 表示输出文件写入或改名失败。
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("写入 %s 失败: %v", e.Path, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

// File 是待提交的输出文件。
type File struct {
	Path  string
	Write func(w io.Writer) error
}

// JSONFile 返回写出记录 JSON 的文件。
func JSONFile(path string, recs []extract.Record) File {
	return File{Path: path, Write: func(w io.Writer) error { return WriteJSON(w, recs) }}
}

// PNGFile 返回写出 PNG 图像的文件。
func PNGFile(path string, img image.Image) File {
	return File{Path: path, Write: func(w io.Writer) error {
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	}}
}

var errIsDir = errors.New("目标路径是目录")

type staged struct {
	tmp    string
	path   string
	backup string // 改名前已存在的目标被移到这里
}

// Commit 先把所有文件写到同目录下的临时文件，全部成功后再逐个改名到目标路径。
// 任一写入或改名失败时，已改名的目标恢复原状，临时文件被删除。
func Commit(files ...File) error {
	var done []staged
	cleanup := func() {
		for _, s := range done {
			_ = os.Remove(s.tmp)
		}
	}
	for _, f := range files {
		tmp, err := stage(f)
		if err != nil {
			cleanup()
			return &IOError{Path: f.Path, Err: err}
		}
		done = append(done, staged{tmp: tmp, path: f.Path})
	}
	for i := range done {
		if err := install(&done[i]); err != nil {
			rollback(done[:i])
			cleanup()
			return &IOError{Path: done[i].path, Err: err}
		}
	}
	for _, s := range done {
		if s.backup != "" {
			_ = os.Remove(s.backup)
		}
	}
	return nil
}

// install 把临时文件改名到目标路径，已有的目标先移到备份。
func install(s *staged) error {
	if fi, err := os.Lstat(s.path); err == nil {
		if fi.IsDir() {
			return errIsDir
		}
		backup := strings.TrimSuffix(s.tmp, ".tmp") + ".bak"
		if err := os.Rename(s.path, backup); err != nil {
			return err
		}
		s.backup = backup
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		restore(*s)
		return err
	}
	return nil
}

func rollback(installed []staged) {
	for i := len(installed) - 1; i >= 0; i-- {
		s := installed[i]
		_ = os.Remove(s.path)
		restore(s)
	}
}

func restore(s staged) {
	if s.backup != "" {
		_ = os.Rename(s.backup, s.path)
	}
}

func stage(f File) (string, error) {
	if fi, err := os.Stat(f.Path); err == nil && fi.IsDir() {
		return "", errIsDir
	}
	dir, base := filepath.Split(f.Path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(name)
		return "", err
	}
	w := bufio.NewWriter(tmp)
	if err := f.Write(w); err != nil {
		return fail(err)
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
