package model

import "time"

// CheckOutStatus は貸出の状態を表す。
type CheckOutStatus string

const (
	// CheckOutStatusActive は貸出中であることを示す。
	CheckOutStatusActive CheckOutStatus = "checked-out"
	// CheckOutStatusReturned は返却済みであることを示す。
	// この状態への遷移は1回限りで、二重返却の冪等性ガードとして機能する。
	CheckOutStatusReturned CheckOutStatus = "returned"
)

// CheckOut は装備品の貸出レコードを表す。
// 作成時にQuantity分を在庫から減算し、返却またはキャンセルで
// ちょうど1回だけ復元する。
type CheckOut struct {
	ID                 string         `json:"id"`
	ItemID             string         `json:"item_id"`
	ItemName           string         `json:"item_name"`
	Quantity           int            `json:"quantity"`
	Borrower           string         `json:"borrower"`
	Status             CheckOutStatus `json:"status"`
	Notes              string         `json:"notes,omitempty"`
	CheckedOutAt       time.Time      `json:"checked_out_at"`
	ExpectedReturnDate time.Time      `json:"expected_return_date"`
	ActualReturnDate   *time.Time     `json:"actual_return_date,omitempty"`
}

// Overdue は基準時刻nowにおいて返却期限を過ぎた貸出中レコードかを返す。
func (c *CheckOut) Overdue(now time.Time) bool {
	return c.Status == CheckOutStatusActive && c.ExpectedReturnDate.Before(now)
}
