package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type entry struct {
	Page int    `json:"page"`
	Text string `json:"text"`
	Kind string `json:"kind"`
	BBox struct {
		X, Y, Width, Height float64
	} `json:"bbox"`
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入输入文件失败: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stderr.String()
}

func readEntries(t *testing.T, path string) []entry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取输出失败: %v", err)
	}
	var out []entry
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("解析输出失败: %v\n%s", err, data)
	}
	return out
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开 %s 失败: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("解码 %s 失败: %v", path, err)
	}
	return img
}

func TestHelloWorldCLI(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "hello.txt", "Hello, world!\n")
	out := filepath.Join(dir, "out", "words.json")

	if code, stderr := runCLI(t, in, out); code != exitOK {
		t.Fatalf("退出码 %d: %s", code, stderr)
	}
	var got []string
	for _, e := range readEntries(t, out) {
		got = append(got, e.Text)
		if e.Kind != "word" || e.Page != 0 {
			t.Fatalf("记录错误: %+v", e)
		}
	}
	if !reflect.DeepEqual(got, []string{"Hello", "world"}) {
		t.Fatalf("默认输出应为 Hello, world，实际 %q", got)
	}

	if code, stderr := runCLI(t, "-include-delimiters", "-include-whitespace", in, out); code != exitOK {
		t.Fatalf("退出码 %d: %s", code, stderr)
	}
	got = got[:0]
	var kinds []string
	for _, e := range readEntries(t, out) {
		got = append(got, e.Text)
		kinds = append(kinds, e.Kind)
	}
	if !reflect.DeepEqual(got, []string{"Hello", ",", " ", "world", "!"}) {
		t.Fatalf("全部片段输出错误: %q", got)
	}
	if !reflect.DeepEqual(kinds, []string{"word", "delimiter", "whitespace", "word", "delimiter"}) {
		t.Fatalf("片段类别错误: %q", kinds)
	}
}

func TestRenderOutputs(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "doc.wb", `doc Demo v1 {
  page custom width 200pt height 100pt margin 10pt {
    text { "Boxes around words" }
    pagebreak
    group rotate 90 x 20pt { text { "Second page" } }
  }
}
`)
	out := filepath.Join(dir, "words.json")
	plain := filepath.Join(dir, "render", "plain.png")
	boxes := filepath.Join(dir, "render", "boxes.png")
	debug := filepath.Join(dir, "debug.json")

	code, stderr := runCLI(t, "-dpi", "144", "-render", plain, "-render-boxes", boxes, "-debug", debug, in, out)
	if code != exitOK {
		t.Fatalf("退出码 %d: %s", code, stderr)
	}
	entries := readEntries(t, out)
	if len(entries) != 5 || entries[0].Page != 0 || entries[len(entries)-1].Page != 1 {
		t.Fatalf("记录错误: %+v", entries)
	}
	// 144 DPI：两页各 400x200 像素，中间 2 像素间隔
	p, b := decodePNG(t, plain), decodePNG(t, boxes)
	if p.Bounds() != b.Bounds() {
		t.Fatalf("两张渲染尺寸不同: %v vs %v", p.Bounds(), b.Bounds())
	}
	if w, h := p.Bounds().Dx(), p.Bounds().Dy(); w < 399 || w > 401 || h < 400 || h > 404 {
		t.Fatalf("拼接图像尺寸错误: %dx%d", w, h)
	}
	e := entries[0]
	x, y := int(e.BBox.X), int(e.BBox.Y)
	if pr, pg, _, _ := p.At(x, y).RGBA(); pr>>8 < 200 || pg>>8 < 200 {
		t.Fatalf("普通渲染不应含外框")
	}
	if br, bg, _, _ := b.At(x, y).RGBA(); br>>8 < 200 || bg>>8 > 128 {
		t.Fatalf("外框左上角应为红色")
	}
	if _, err := os.Stat(debug); err != nil {
		t.Fatalf("调试 JSON 未写出: %v", err)
	}
}

func TestEmptyInput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "empty.txt", "")
	out := filepath.Join(dir, "words.json")
	plain := filepath.Join(dir, "plain.png")
	if code, stderr := runCLI(t, "-render", plain, in, out); code != exitOK {
		t.Fatalf("退出码 %d: %s", code, stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "[]\n" {
		t.Fatalf("空文档应输出 []，实际 %q, %v", data, err)
	}
	img := decodePNG(t, plain)
	b := img.Bounds()
	for _, pt := range []image.Point{{0, 0}, {b.Dx() / 2, b.Dy() / 2}, {b.Dx() - 1, b.Dy() - 1}} {
		if r, g, bl, _ := img.At(pt.X, pt.Y).RGBA(); r != 0xffff || g != 0xffff || bl != 0xffff {
			t.Fatalf("空白页像素 %v 应为白色", pt)
		}
	}
}

func TestDataBindingCLI(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "doc.wb", `doc D v1 { page A5 { text { "Dear ${name}" } } }`)
	out := filepath.Join(dir, "words.json")
	if code, stderr := runCLI(t, "-data", `{"name":"Ada"}`, in, out); code != exitOK {
		t.Fatalf("退出码 %d: %s", code, stderr)
	}
	entries := readEntries(t, out)
	if len(entries) != 2 || entries[1].Text != "Ada" {
		t.Fatalf("数据绑定未生效: %+v", entries)
	}
}

func TestInvalidUTF8Input(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "latin1.txt", "caf\xe9 ok")
	out := filepath.Join(dir, "words.json")
	if code, stderr := runCLI(t, "-include-whitespace", in, out); code != exitOK {
		t.Fatalf("退出码 %d: %s", code, stderr)
	}
	entries := readEntries(t, out)
	var got []string
	for _, e := range entries {
		got = append(got, e.Text)
	}
	if !reflect.DeepEqual(got, []string{"caf\ufffd", " ", "ok"}) {
		t.Fatalf("非法字节应保留在词内: %q", got)
	}
	if entries[0].BBox.Width <= 0 || entries[2].BBox.X <= entries[0].BBox.X+entries[0].BBox.Width {
		t.Fatalf("外框位置错误: %+v", entries)
	}
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	good := writeInput(t, dir, "good.txt", "fine")
	broken := writeInput(t, dir, "broken.wb", "doc A v1 {\n  page {\n")
	huge := writeInput(t, dir, "huge.wb", "doc A v1 { page custom width 1200mm height 100mm { text { \"big\" } } }")
	blocker := writeInput(t, dir, "blocker", "x")

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no args", nil, exitFailure},
		{"one arg", []string{good}, exitFailure},
		{"unknown flag", []string{"-nope", good, filepath.Join(dir, "o.json")}, exitFailure},
		{"missing input", []string{filepath.Join(dir, "missing.txt"), filepath.Join(dir, "o.json")}, exitConfig},
		{"bad dpi", []string{"-dpi", "0", good, filepath.Join(dir, "o.json")}, exitConfig},
		{"bad data", []string{"-data", "{", good, filepath.Join(dir, "o.json")}, exitConfig},
		{"output dir blocked", []string{good, filepath.Join(blocker, "o.json")}, exitConfig},
		{"compile error", []string{broken, filepath.Join(dir, "broken.json")}, exitCompile},
		{"strict data", []string{"-strict-data", "-data", "{}", writeInput(t, dir, "s.wb", `doc S v1 { page A4 { text { "${x}" } } }`), filepath.Join(dir, "s.json")}, exitCompile},
		{"render target is dir", []string{"-render-boxes", dir, good, filepath.Join(dir, "dirbox.json")}, exitConfig},
		{"page too large", []string{"-render", filepath.Join(dir, "huge.png"), huge, filepath.Join(dir, "huge.json")}, exitConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code, stderr := runCLI(t, tc.args...); code != tc.want {
				t.Fatalf("期望退出码 %d，实际 %d: %s", tc.want, code, stderr)
			}
		})
	}
	for _, name := range []string{"broken.json", "huge.json", "huge.png", "s.json", "dirbox.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("失败时不应写出 %s", name)
		}
	}
}
