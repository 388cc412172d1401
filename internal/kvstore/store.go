// Package kvstore はキー・バリュー永続化の抽象を提供する。
// キーは文字列セグメントの順序付きタプルで、単一キーの原子的操作
// （get/set/delete/prefix list/compare-and-set）のみを保証する。
// 複数キーにまたがるトランザクションは提供しない。
package kvstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// KeySeparator はキーのセグメント結合に使用する区切り文字。
// セグメント自体にこの文字を含めることはできない。
const KeySeparator = "/"

// Key は名前空間セグメントの順序付きタプル。
// 例: Key{"sessions", sessionID}
type Key []string

// Encode はキーを格納用の文字列に変換する。
func (k Key) Encode() string {
	return strings.Join(k, KeySeparator)
}

// Validate はすべてのセグメントが非空かつ区切り文字を含まないことを検証する。
func (k Key) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("key must have at least one segment")
	}
	for _, seg := range k {
		if seg == "" {
			return fmt.Errorf("key segment must not be empty: %v", k)
		}
		if strings.Contains(seg, KeySeparator) {
			return fmt.Errorf("key segment must not contain %q: %v", KeySeparator, k)
		}
	}
	return nil
}

// DecodeKey は格納用文字列をKeyに復元する。
func DecodeKey(s string) Key {
	return Key(strings.Split(s, KeySeparator))
}

// Entry はList結果の1件を表す。
type Entry struct {
	Key   Key
	Value []byte
}

// SetOptions は書き込み時のオプション。
type SetOptions struct {
	// TTL が正の場合、経過後にエントリは失効する。0は無期限。
	TTL time.Duration
}

// Store は単一キー原子操作のみを提供するキー・バリューストア。
// すべての実装は個々の操作のキー単位の原子性を保証するが、
// キーをまたぐ順序保証はない。
type Store interface {
	// Get はキーの値を返す。キーが存在しない（または失効済み）の場合は
	// (nil, nil) を返す。
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set はキーに値を書き込む。optsがnilの場合はTTLなし。
	Set(ctx context.Context, key Key, value []byte, opts *SetOptions) error

	// Delete はキーを削除する。存在しないキーの削除はエラーにならない。
	Delete(ctx context.Context, key Key) error

	// List はprefixで始まるエントリをキー昇順で返す。失効済みは含まない。
	List(ctx context.Context, prefix Key) ([]Entry, error)

	// CompareAndSet は現在値がexpectedと一致する場合のみvalueを書き込む。
	// expectedがnilの場合「キーが存在しない」を期待値とする。
	// 書き込めた場合はtrueを返す。不一致の場合はfalseを返し、何も変更しない。
	CompareAndSet(ctx context.Context, key Key, expected, value []byte, opts *SetOptions) (bool, error)
}
