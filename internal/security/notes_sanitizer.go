// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NotesSanitizer は装備品・キャンプ計画・貸出に付与される自由記述メモを
// サニタイズし、保存データ経由のXSSからユーザーを保護する。
// bluemondayライブラリの厳格ポリシーで全HTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NotesSanitizerService はメモ文字列のサニタイズ機能のインターフェースを定義する。
// 自由記述フィールドの保存前に使用される。
type NotesSanitizerService interface {
	// Sanitize はメモからHTMLタグをすべて除去したプレーンテキストを返す。
	// 前後の空白も取り除く。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// notesSanitizer はNotesSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type notesSanitizer struct {
	policy *bluemonday.Policy
}

// NewNotesSanitizer はNotesSanitizerServiceの新しいインスタンスを生成する。
// メモはプレーンテキストとして扱うため、タグを一切許可しない
// StrictPolicyを使用する。
func NewNotesSanitizer() *notesSanitizer {
	return &notesSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はメモからHTMLタグをすべて除去したプレーンテキストを返す。
func (s *notesSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
