// Package password はパスワードのハッシュ化・検証・旧形式からの移行を提供する。
// 旧形式（ソルトなしSHA-256の16進ダイジェスト）と新形式（bcrypt）が
// 移行期間中に共存するため、格納値の構造からまず形式を判別する。
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

// DefaultCost はbcryptのデフォルトコストファクタ。
const DefaultCost = 12

const (
	// MinLength はパスワードの最小バイト長。
	MinLength = 12
	// MaxLength はパスワードの最大バイト長。
	// bcryptは72バイトまでしか評価しないが、入力自体の上限として設ける。
	MaxLength = 128
)

// legacyHashPattern は旧形式ハッシュの構造（SHA-256の64桁小文字16進）。
// ソルトもコスト情報も埋め込まれていないため長さと文字種で判別できる。
var legacyHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// commonPasswords はよく使われるパスワードのブロックリスト。
// 小文字正規化した完全一致で照合する。
var commonPasswords = map[string]struct{}{
	"password":         {},
	"password1":        {},
	"password123":      {},
	"password1234":     {},
	"123456789012":     {},
	"qwertyuiop12":     {},
	"letmein12345":     {},
	"welcome12345":     {},
	"administrator":    {},
	"scoutinventory":   {},
	"campequipment":    {},
	"correcthorse":     {},
	"iloveyou1234":     {},
	"dragon123456":     {},
	"sunshine1234":     {},
	"baseball1234":     {},
	"trustno1trustno1": {},
}

// Vault はパスワードのハッシュ化と検証を提供する。
type Vault struct {
	cost int
}

// NewVault はVaultを生成する。costが範囲外の場合はDefaultCostを使用する。
// テストでは低コストを指定してbcryptの計算時間を短縮できる。
func NewVault(cost int) *Vault {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Vault{cost: cost}
}

// VerifyResult は検証結果を表す。
type VerifyResult struct {
	// Valid はパスワードが格納ハッシュと一致したかを示す。
	Valid bool
	// UpgradedHash は旧形式ハッシュの検証に成功した場合のみ設定される
	// 新形式の置き換えハッシュ。呼び出し側はこれを透過的に再永続化する。
	UpgradedHash string
}

// Hash はパスワードの新形式（bcrypt）ハッシュを計算する。
// ソルトは呼び出しごとに新規生成されるため出力は毎回異なる。
func (v *Vault) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// Verify はパスワードを格納ハッシュと照合する。
// 不一致や不正な格納ハッシュはValid=falseとして返し、エラーにはしない。
// 旧形式ハッシュとの照合に成功した場合は新形式ハッシュも同時に計算して返す
// （失敗時には決して再ハッシュしない）。
func (v *Vault) Verify(password, storedHash string) VerifyResult {
	if legacyHashPattern.MatchString(storedHash) {
		return v.verifyLegacy(password, storedHash)
	}

	// 新形式: bcryptの定数時間比較。不正な格納値もここで不一致になる。
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)); err != nil {
		return VerifyResult{Valid: false}
	}
	return VerifyResult{Valid: true}
}

// verifyLegacy は旧形式ハッシュとの照合と移行用ハッシュの生成を行う。
func (v *Vault) verifyLegacy(password, storedHash string) VerifyResult {
	sum := sha256.Sum256([]byte(password))
	digest := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(digest), []byte(storedHash)) != 1 {
		return VerifyResult{Valid: false}
	}

	upgraded, err := v.Hash(password)
	if err != nil {
		// 検証自体は成功している。移行は次回ログインで再試行される。
		return VerifyResult{Valid: true}
	}
	return VerifyResult{Valid: true, UpgradedHash: upgraded}
}

// Validate はパスワードポリシーを検証する。
// 長さの範囲チェックとブロックリスト照合のみで、文字種の必須要件は課さない。
func Validate(password string) error {
	if len(password) < MinLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上にしてください。", MinLength))
	}
	if len(password) > MaxLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以下にしてください。", MaxLength))
	}
	if _, blocked := commonPasswords[strings.ToLower(password)]; blocked {
		return model.NewValidationError("よく使われるパスワードのため使用できません。")
	}
	return nil
}
