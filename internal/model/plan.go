package model

import "time"

// CampPlanItem はキャンプ計画に含まれる1品目のパッキング状態を表す。
// Categoryは計画作成時点のスナップショット（差分計算で在庫レコードの
// 再読込を不要にするため）。
type CampPlanItem struct {
	ItemID          string       `json:"item_id"`
	Category        ItemCategory `json:"category"`
	QuantityPlanned int          `json:"quantity_planned"`
	Packed          bool         `json:"packed"`
	Returned        bool         `json:"returned"`
	Notes           string       `json:"notes,omitempty"`
}

// CampPlan はキャンプの持ち物計画を表す。
// Itemsは保存のたびにUIから全量置換される（差分ではなく全リスト送信）。
type CampPlan struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Items     []CampPlanItem `json:"items"`
	Notes     string         `json:"notes,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ItemByID はItemsをItemIDで引くためのマップを返す。
func (p *CampPlan) ItemByID() map[string]CampPlanItem {
	m := make(map[string]CampPlanItem, len(p.Items))
	for _, it := range p.Items {
		m[it.ItemID] = it
	}
	return m
}
