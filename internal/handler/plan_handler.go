package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/plan"
)

// PlanServiceInterface はキャンプ計画ハンドラーが必要とするサービスインターフェース。
type PlanServiceInterface interface {
	Create(ctx context.Context, in plan.Input) (*model.CampPlan, error)
	Update(ctx context.Context, id string, in plan.Input) (*model.CampPlan, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.CampPlan, error)
	List(ctx context.Context) ([]*model.CampPlan, error)
}

// PlanHandler はキャンプ計画のHTTPハンドラー。
type PlanHandler struct {
	service PlanServiceInterface
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(service PlanServiceInterface) *PlanHandler {
	return &PlanHandler{service: service}
}

// planItemPayload は計画1品目のリクエスト・レスポンス表現。
type planItemPayload struct {
	ItemID          string `json:"item_id"`
	Category        string `json:"category,omitempty"`
	QuantityPlanned int    `json:"quantity_planned"`
	Packed          bool   `json:"packed"`
	Returned        bool   `json:"returned"`
	Notes           string `json:"notes,omitempty"`
}

// planRequest は計画の作成・更新リクエストのボディ。品目リストは全量置換。
type planRequest struct {
	Name      string            `json:"name"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	Items     []planItemPayload `json:"items"`
	Notes     string            `json:"notes"`
}

// planResponse は計画のAPIレスポンス。
type planResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	Items     []planItemPayload `json:"items"`
	Notes     string            `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (req *planRequest) toInput() plan.Input {
	items := make([]model.CampPlanItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.CampPlanItem{
			ItemID:          it.ItemID,
			QuantityPlanned: it.QuantityPlanned,
			Packed:          it.Packed,
			Returned:        it.Returned,
			Notes:           it.Notes,
		}
	}
	return plan.Input{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Items:     items,
		Notes:     req.Notes,
	}
}

func toPlanResponse(p *model.CampPlan) planResponse {
	items := make([]planItemPayload, len(p.Items))
	for i, it := range p.Items {
		items[i] = planItemPayload{
			ItemID:          it.ItemID,
			Category:        string(it.Category),
			QuantityPlanned: it.QuantityPlanned,
			Packed:          it.Packed,
			Returned:        it.Returned,
			Notes:           it.Notes,
		}
	}
	return planResponse{
		ID:        p.ID,
		Name:      p.Name,
		StartDate: p.StartDate.Format("2006-01-02"),
		EndDate:   p.EndDate.Format("2006-01-02"),
		Items:     items,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// CreatePlan は計画作成を処理する。
// POST /api/plans
func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	p, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(p))
}

// GetPlan は計画詳細を取得する。
// GET /api/plans/{id}
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(p))
}

// ListPlans は計画一覧を取得する。
// GET /api/plans
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]planResponse, len(plans))
	for i, p := range plans {
		resp[i] = toPlanResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdatePlan は計画の全量置換更新を処理する。パッキング状態の差分は
// 在庫に反映される。一部の品目の在庫処理が失敗した場合は207で返る
// （計画本体の更新は成立している）。
// PUT /api/plans/{id}
func (h *PlanHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(p))
}

// DeletePlan は計画削除を処理する。
// DELETE /api/plans/{id}
func (h *PlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
