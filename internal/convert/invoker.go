package convert

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// Invoker は変換コマンドのテンプレート展開と実行を担います。
type Invoker struct {
	commands   map[string]string
	extensions map[string]string
	runner     CommandRunner
	logger     *log.Logger
}

// NewInvoker は Invoker を初期化します。コマンドテンプレートと拡張子のキーは
// フォーマット名（小文字）です。
func NewInvoker(commands, extensions map[string]string, runner CommandRunner, logger *log.Logger) *Invoker {
	if runner == nil {
		runner = ShellRunner{}
	}
	if logger == nil {
		logger = log.Default()
	}
	normalized := map[string]string{}
	for format, tmpl := range commands {
		normalized[strings.ToLower(format)] = tmpl
	}
	exts := map[string]string{}
	for format, ext := range extensions {
		exts[strings.ToLower(format)] = ext
	}
	return &Invoker{
		commands:   normalized,
		extensions: exts,
		runner:     runner,
		logger:     logger,
	}
}

// Extension はフォーマットに対応する出力拡張子を返します（未設定時はフォーマット名）。
func (i *Invoker) Extension(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if ext, ok := i.extensions[format]; ok && ext != "" {
		return ext
	}
	return format
}

// Artifact は変換で生成された一時ファイルを表します。後始末は呼び出し側の責務です。
type Artifact struct {
	Path      string
	Extension string

	dir         string
	cleanupOnce sync.Once
	cleanupErr  error
}

// Cleanup は成果物と作業ディレクトリを削除します。
func (a *Artifact) Cleanup() error {
	if a == nil {
		return nil
	}
	a.cleanupOnce.Do(func() {
		a.cleanupErr = os.RemoveAll(a.dir)
	})
	return a.cleanupErr
}

// PDFPageCount は成果物がPDFの場合にページ数を返します。
func (a *Artifact) PDFPageCount() (int, bool) {
	if a == nil || !strings.EqualFold(a.Extension, "pdf") {
		return 0, false
	}
	count, err := pdfapi.PageCountFile(a.Path)
	if err != nil {
		return 0, false
	}
	return count, true
}

// Convert はHTML文書を指定フォーマットへ変換し、出力ファイルのハンドルを返します。
// フォーマットに対応するコマンドが未設定の場合はサブプロセスを起動せずに失敗します。
func (i *Invoker) Convert(ctx context.Context, html string, format string, metadata map[string]string) (*Artifact, error) {
	format = strings.ToLower(strings.TrimSpace(format))

	tmpl, ok := i.commands[format]
	if !ok {
		return nil, newError(CodeUnsupportedFormat, fmt.Sprintf("フォーマット %q の変換コマンドが設定されていません。", format), nil)
	}
	ext := i.Extension(format)

	// 入出力とも専用の一時ディレクトリに置き、そこを作業ディレクトリとして実行する。
	// カレントディレクトリへの書き込みを要求する変換ツールがあるため。
	scratch, err := os.MkdirTemp("", "bookbinder-convert-*")
	if err != nil {
		return nil, newError(CodeInternal, "一時ディレクトリの作成に失敗しました。", err)
	}

	inputPath := filepath.Join(scratch, "input.html")
	if err := os.WriteFile(inputPath, []byte(html), 0o640); err != nil {
		_ = os.RemoveAll(scratch)
		return nil, newError(CodeInternal, "変換入力の書き込みに失敗しました。", err)
	}
	outputPath := filepath.Join(scratch, "output."+ext)

	command := expandTemplate(tmpl, inputPath, outputPath, metadata)

	exitCode, output, err := i.runner.Run(ctx, command, scratch)
	if err != nil {
		_ = os.RemoveAll(scratch)
		return nil, newError(CodeConvertFailed, "変換コマンドの起動に失敗しました。", err)
	}
	if exitCode != 0 {
		i.logger.Printf("conversion to %s failed (exit=%d): %s", format, exitCode, strings.TrimSpace(string(output)))
		_ = os.RemoveAll(scratch)
		return nil, newError(CodeConvertFailed, fmt.Sprintf("変換コマンドが終了コード %d で失敗しました: %s", exitCode, strings.TrimSpace(string(output))), nil)
	}
	if _, err := os.Stat(outputPath); err != nil {
		_ = os.RemoveAll(scratch)
		return nil, newError(CodeConvertFailed, "変換コマンドが出力ファイルを生成しませんでした。", err)
	}

	return &Artifact{Path: outputPath, Extension: ext, dir: scratch}, nil
}

var metadataPlaceholder = regexp.MustCompile(`\{METADATA:([^}]*)\}`)

// expandTemplate はテンプレート中のプレースホルダをすべて解決します。
// 未知のメタデータキーは空文字列（クオート済み）に置換され、未解決のまま残りません。
func expandTemplate(tmpl, inputPath, outputPath string, metadata map[string]string) string {
	command := strings.ReplaceAll(tmpl, "{INPUT}", shellQuote(inputPath))
	command = strings.ReplaceAll(command, "{OUTPUT}", shellQuote(outputPath))
	command = metadataPlaceholder.ReplaceAllStringFunc(command, func(placeholder string) string {
		key := metadataPlaceholder.FindStringSubmatch(placeholder)[1]
		return shellQuote(metadata[key])
	})
	return command
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
