package kvstore

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
)

// PostgresStore はPostgreSQLのkv_entriesテーブルを使用したStore実装。
// compare-and-setは既存行には行ロック（SELECT ... FOR UPDATE）、
// 不在キーには条件付きUPSERTでキー単位の原子性を保証する。
type PostgresStore struct {
	db    *sql.DB
	clock clock.Clock
}

// NewPostgresStore はPostgresStoreを生成する。clkがnilの場合は実時刻を使用する。
func NewPostgresStore(db *sql.DB, clk clock.Clock) *PostgresStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &PostgresStore{db: db, clock: clk}
}

// Get はキーの値を返す。失効済み行は存在しない扱い。
func (s *PostgresStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT v FROM kv_entries WHERE k = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key.Encode(), s.clock.Now(),
	).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv entry: %w", err)
	}
	return v, nil
}

// Set はキーに値をUPSERTで書き込む。
func (s *PostgresStore) Set(ctx context.Context, key Key, value []byte, opts *SetOptions) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (k, v, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, expires_at = EXCLUDED.expires_at`,
		key.Encode(), value, s.expiry(opts),
	)
	if err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

// Delete はキーを削除する。
func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE k = $1`, key.Encode())
	if err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}

// List はprefixで始まるエントリをキー昇順で返す。
func (s *PostgresStore) List(ctx context.Context, prefix Key) ([]Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}
	pattern := escapeLikePattern(prefix.Encode()+KeySeparator) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT k, v FROM kv_entries
		 WHERE k LIKE $1 AND (expires_at IS NULL OR expires_at > $2)
		 ORDER BY k`,
		pattern, s.clock.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list kv entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan kv entry: %w", err)
		}
		result = append(result, Entry{Key: DecodeKey(k), Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kv entries: %w", err)
	}
	return result, nil
}

// CompareAndSet は現在値がexpectedと一致する場合のみvalueを書き込む。
//
// expectedがnil（キー不在を期待）の場合はSELECT ... FOR UPDATEでは
// 原子性を保証できない。行が存在しないとロック対象がなく、並行する
// 2つの呼び出しが両方とも「不在」を観測してしまうためである。
// このケースは条件付きUPSERT 1文に委ね、ユニークインデックスの衝突
// 解決で勝者を1つに絞る。失効済み行だけはDO UPDATE側で回収する。
//
// expectedが非nilの場合は行が必ず存在するため、トランザクション内の
// SELECT ... FOR UPDATEで対象行をロックし、比較と書き込みの間に
// 他の書き込みが割り込めないようにする。
func (s *PostgresStore) CompareAndSet(ctx context.Context, key Key, expected, value []byte, opts *SetOptions) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}

	if expected == nil {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO kv_entries (k, v, expires_at) VALUES ($1, $2, $3)
			 ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, expires_at = EXCLUDED.expires_at
			 WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= $4`,
			key.Encode(), value, s.expiry(opts), s.clock.Now(),
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert kv entry for cas: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read cas insert result: %w", err)
		}
		// 生きた行が既に存在した場合、DO UPDATEのWHEREが偽になり0行更新となる
		return n > 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin cas transaction: %w", err)
	}
	defer tx.Rollback()

	encoded := key.Encode()
	now := s.clock.Now()

	var current []byte
	var expiresAt sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT v, expires_at FROM kv_entries WHERE k = $1 FOR UPDATE`,
		encoded,
	).Scan(&current, &expiresAt)

	exists := true
	switch {
	case err == sql.ErrNoRows:
		exists = false
	case err != nil:
		return false, fmt.Errorf("failed to read kv entry for cas: %w", err)
	case expiresAt.Valid && !now.Before(expiresAt.Time):
		// 失効済み行は存在しない扱い（行自体はこの後のUPSERTで上書きされる）
		exists = false
	}

	if !exists || !bytes.Equal(current, expected) {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv_entries (k, v, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, expires_at = EXCLUDED.expires_at`,
		encoded, value, s.expiry(opts),
	)
	if err != nil {
		return false, fmt.Errorf("failed to write kv entry for cas: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit cas transaction: %w", err)
	}
	return true, nil
}

// expiry はSetOptionsから失効時刻を算出する。TTLなしはNULL。
func (s *PostgresStore) expiry(opts *SetOptions) sql.NullTime {
	if opts == nil || opts.TTL <= 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: s.clock.Now().Add(opts.TTL), Valid: true}
}

// escapeLikePattern はLIKEパターンのメタ文字をエスケープする。
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

var _ Store = (*PostgresStore)(nil)
