package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/loan"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

// LoanServiceInterface は貸出ハンドラーが必要とするサービスインターフェース。
type LoanServiceInterface interface {
	Create(ctx context.Context, in loan.CreateInput) (*model.CheckOut, error)
	Return(ctx context.Context, id string) (*model.CheckOut, error)
	Cancel(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.CheckOut, error)
	List(ctx context.Context) ([]*model.CheckOut, error)
	ListOverdue(ctx context.Context) ([]*model.CheckOut, error)
}

// LoanHandler は貸出のHTTPハンドラー。
type LoanHandler struct {
	service LoanServiceInterface
}

// NewLoanHandler はLoanHandlerを生成する。
func NewLoanHandler(service LoanServiceInterface) *LoanHandler {
	return &LoanHandler{service: service}
}

// loanRequest は貸出作成リクエストのボディ。
type loanRequest struct {
	ItemID             string `json:"item_id"`
	Quantity           int    `json:"quantity"`
	Borrower           string `json:"borrower"`
	ExpectedReturnDate string `json:"expected_return_date"`
	Notes              string `json:"notes"`
}

// loanResponse は貸出のAPIレスポンス。
type loanResponse struct {
	ID                 string     `json:"id"`
	ItemID             string     `json:"item_id"`
	ItemName           string     `json:"item_name"`
	Quantity           int        `json:"quantity"`
	Borrower           string     `json:"borrower"`
	Status             string     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	CheckedOutAt       time.Time  `json:"checked_out_at"`
	ExpectedReturnDate string     `json:"expected_return_date"`
	ActualReturnDate   *time.Time `json:"actual_return_date,omitempty"`
}

func toLoanResponse(c *model.CheckOut) loanResponse {
	return loanResponse{
		ID:                 c.ID,
		ItemID:             c.ItemID,
		ItemName:           c.ItemName,
		Quantity:           c.Quantity,
		Borrower:           c.Borrower,
		Status:             string(c.Status),
		Notes:              c.Notes,
		CheckedOutAt:       c.CheckedOutAt,
		ExpectedReturnDate: c.ExpectedReturnDate.Format("2006-01-02"),
		ActualReturnDate:   c.ActualReturnDate,
	}
}

// CreateLoan は貸出作成を処理する。在庫不足の場合は409で拒否される。
// POST /api/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	c, err := h.service.Create(r.Context(), loan.CreateInput{
		ItemID:             req.ItemID,
		Quantity:           req.Quantity,
		Borrower:           req.Borrower,
		ExpectedReturnDate: req.ExpectedReturnDate,
		Notes:              req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanResponse(c))
}

// GetLoan は貸出詳細を取得する。
// GET /api/loans/{id}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(c))
}

// ListLoans は貸出一覧を取得する。?overdue=true で期限超過のみに絞り込む。
// GET /api/loans
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	var (
		loans []*model.CheckOut
		err   error
	)
	if r.URL.Query().Get("overdue") == "true" {
		loans, err = h.service.ListOverdue(r.Context())
	} else {
		loans, err = h.service.List(r.Context())
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]loanResponse, len(loans))
	for i, c := range loans {
		resp[i] = toLoanResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReturnLoan は返却処理を行う。二重返却は409で拒否され、在庫は二重には
// 戻らない。
// POST /api/loans/{id}/return
func (h *LoanHandler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Return(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(c))
}

// CancelLoan は貸出中レコードの取り消しを処理する。
// DELETE /api/loans/{id}
func (h *LoanHandler) CancelLoan(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
