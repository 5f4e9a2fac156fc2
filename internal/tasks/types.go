// Package tasks は変換タスクの状態管理と非同期実行を提供します。
package tasks

import "time"

// State はタスクの永続状態を表します。
// pending から finished または failed へちょうど1回だけ遷移します。
// 中間状態は永続化せず、キャンセルや再試行の状態も存在しません。
type State string

const (
	StatePending  State = "pending"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Record はタスク行を表します。
// ContentKey が非空になるのは変換が成功して finished になったときだけです。
// Disposition は finished でも空のことがあり、その場合はストア側の名前を使います。
type Record struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	State       State     `json:"state"`
	Disposition string    `json:"disposition,omitempty"`
	ContentKey  string    `json:"contentKey,omitempty"`
}
