package convert

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandRunner はシェルコマンドを実行し、終了コードと出力を返します。
// dir を作業ディレクトリとして各呼び出しに閉じ込めることで、プロセス全体の
// カレントディレクトリを書き換えずに済みます（並行実行しても安全です）。
type CommandRunner interface {
	Run(ctx context.Context, command string, dir string) (exitCode int, output []byte, err error)
}

// ShellRunner は sh -c でコマンドを実行する CommandRunner です。
// タイムアウトは設けません。変換は長時間かかることが想定されており、
// 実行時間の上限は運用側のレイヤーが課します。
type ShellRunner struct{}

// Run はコマンドを実行し、stdoutとstderrをまとめて返します。
// 非ゼロ終了はエラーではなく終了コードとして返します。
func (ShellRunner) Run(ctx context.Context, command string, dir string) (int, []byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), output.Bytes(), nil
		}
		return -1, output.Bytes(), err
	}
	return 0, output.Bytes(), nil
}
