// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleAdmin は全操作（ユーザー管理を含む）が可能なロール。
	RoleAdmin Role = "admin"
	// RoleManager は在庫・キャンプ計画・貸出の変更操作が可能なロール。
	RoleManager Role = "manager"
	// RoleViewer は閲覧のみ可能なロール。
	RoleViewer Role = "viewer"
)

// roleRank はロールの強さの順序。大きいほど権限が強い。
var roleRank = map[Role]int{
	RoleViewer:  1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// Valid はロールが定義済みのいずれかであるかを返す。
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast はrがrequired以上の権限を持つかを返す。
// 未定義のロールは常にfalseを返す。
func (r Role) AtLeast(required Role) bool {
	rank, ok := roleRank[r]
	reqRank, reqOK := roleRank[required]
	return ok && reqOK && rank >= reqRank
}

// User は団体のメンバーアカウントを表す。
// Usernameは小文字正規化した値で一意。
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session はログインセッションを表す。
// Role/Usernameはログイン時点のスナップショットであり、
// ユーザー情報が変更されても再ログインまで更新されない。
// CSRFTokenはセッションの生存期間中変更されない。
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CSRFToken string    `json:"csrf_token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
