package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/inventory"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/model"
)

// ItemServiceInterface は装備品ハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	Create(ctx context.Context, in inventory.CreateInput) (*model.InventoryItem, error)
	Update(ctx context.Context, id string, in inventory.UpdateInput) (*model.InventoryItem, error)
	FindByID(ctx context.Context, id string) (*model.InventoryItem, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.InventoryItem, error)
	Reconcile(ctx context.Context, corrections []model.StockCorrection) error
}

// ItemHandler は装備品在庫のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// itemRequest は装備品の作成・更新リクエストのボディ。
type itemRequest struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	Location  string `json:"location"`
	Condition string `json:"condition"`
	Notes     string `json:"notes"`
}

// itemResponse は装備品のAPIレスポンス。
type itemResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Quantity       int       `json:"quantity"`
	Location       string    `json:"location,omitempty"`
	AtCamp         bool      `json:"at_camp"`
	QuantityAtCamp int       `json:"quantity_at_camp"`
	Condition      string    `json:"condition,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// stockTakeRequest は棚卸し反映リクエストのボディ。
type stockTakeRequest struct {
	Corrections []model.StockCorrection `json:"corrections"`
}

func toItemResponse(item *model.InventoryItem) itemResponse {
	return itemResponse{
		ID:             item.ID,
		Name:           item.Name,
		Category:       string(item.Category),
		Quantity:       item.Quantity,
		Location:       item.Location,
		AtCamp:         item.AtCamp,
		QuantityAtCamp: item.QuantityAtCamp,
		Condition:      string(item.Condition),
		Notes:          item.Notes,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

// CreateItem は装備品登録を処理する。
// POST /api/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	item, err := h.service.Create(r.Context(), inventory.CreateInput{
		Name:      req.Name,
		Category:  model.ItemCategory(req.Category),
		Quantity:  req.Quantity,
		Location:  req.Location,
		Condition: model.Condition(req.Condition),
		Notes:     req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// GetItem は装備品詳細を取得する。
// GET /api/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// ListItems は装備品一覧を取得する。
// GET /api/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]itemResponse, len(items))
	for i, item := range items {
		resp[i] = toItemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateItem は装備品のメタデータ更新を処理する。
// PUT /api/items/{id}
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	item, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), inventory.UpdateInput{
		Name:      req.Name,
		Location:  req.Location,
		Condition: model.Condition(req.Condition),
		Notes:     req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// DeleteItem は装備品削除を処理する。
// DELETE /api/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StockTake は棚卸し結果の反映を処理する。一部の品目が失敗した場合は
// 207 Multi-Statusで品目別の失敗一覧を返す。
// POST /api/items/stocktake
func (h *ItemHandler) StockTake(w http.ResponseWriter, r *http.Request) {
	var req stockTakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if len(req.Corrections) == 0 {
		handleServiceError(w, model.NewValidationError("補正対象の品目がありません"))
		return
	}

	if err := h.service.Reconcile(r.Context(), req.Corrections); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
