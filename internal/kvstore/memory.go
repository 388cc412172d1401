package kvstore

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
)

// memoryEntry はMemoryStore内部の1エントリ。
type memoryEntry struct {
	value     []byte
	expiresAt time.Time // ゼロ値は無期限
}

// MemoryStore はプロセス内メモリのStore実装。
// テストおよび単一プロセス運用向け。失効判定は読み取り時に遅延実行する。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

// NewMemoryStore はMemoryStoreを生成する。clkがnilの場合は実時刻を使用する。
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clk,
	}
}

// Get はキーの値を返す。失効済みエントリはその場で削除しnilを返す。
func (s *MemoryStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key.Encode()), nil
}

// getLocked はロック保持中に呼び出す前提で、失効判定込みの値を返す。
func (s *MemoryStore) getLocked(encoded string) []byte {
	e, ok := s.entries[encoded]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, encoded)
		return nil
	}
	// 呼び出し側での変更から保護するためコピーを返す
	v := make([]byte, len(e.value))
	copy(v, e.value)
	return v
}

// Set はキーに値を書き込む。
func (s *MemoryStore) Set(ctx context.Context, key Key, value []byte, opts *SetOptions) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key.Encode(), value, opts)
	return nil
}

func (s *MemoryStore) setLocked(encoded string, value []byte, opts *SetOptions) {
	v := make([]byte, len(value))
	copy(v, value)
	e := memoryEntry{value: v}
	if opts != nil && opts.TTL > 0 {
		e.expiresAt = s.clock.Now().Add(opts.TTL)
	}
	s.entries[encoded] = e
}

// Delete はキーを削除する。存在しない場合も成功扱い。
func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key.Encode())
	return nil
}

// List はprefixで始まるエントリをキー昇順で返す。
func (s *MemoryStore) List(ctx context.Context, prefix Key) ([]Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}
	encodedPrefix := prefix.Encode() + KeySeparator

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Entry
	for k := range s.entries {
		if !strings.HasPrefix(k, encodedPrefix) {
			continue
		}
		v := s.getLocked(k)
		if v == nil {
			continue // 失効済み
		}
		result = append(result, Entry{Key: DecodeKey(k), Value: v})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key.Encode() < result[j].Key.Encode()
	})
	return result, nil
}

// CompareAndSet は現在値がexpectedと一致する場合のみ書き込む。
func (s *MemoryStore) CompareAndSet(ctx context.Context, key Key, expected, value []byte, opts *SetOptions) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded := key.Encode()
	current := s.getLocked(encoded)
	if expected == nil {
		if current != nil {
			return false, nil
		}
	} else if !bytes.Equal(current, expected) {
		return false, nil
	}
	s.setLocked(encoded, value, opts)
	return true, nil
}

var _ Store = (*MemoryStore)(nil)
