package model

import "time"

// ItemCategory は装備品のカテゴリを表す。
// カテゴリごとの在庫ルール（消耗品か返却品か）はcategoryTraitsで定義する。
type ItemCategory string

const (
	// CategoryFood は食料。パッキングで在庫が恒久的に減る消耗品。
	CategoryFood ItemCategory = "food"
	// CategoryGear は一般装備。パッキングは持出フラグのみで在庫数は変わらない。
	CategoryGear ItemCategory = "gear"
	// CategoryTent はテント類。在庫ルールはgearと同じ返却品。
	CategoryTent ItemCategory = "tent"
	// CategoryKitchen は炊事用具。在庫ルールはgearと同じ返却品。
	CategoryKitchen ItemCategory = "kitchen"
	// CategoryFuel は燃料。foodと同じ消耗品扱い。
	CategoryFuel ItemCategory = "fuel"
)

// categoryTrait はカテゴリごとの在庫上の性質。
type categoryTrait struct {
	// Consumable がtrueの場合、パッキングは在庫数を減算する（返却追跡なし）。
	// falseの場合、パッキングは持出フラグの変更のみで在庫数は不変。
	Consumable bool
}

// categoryTraits はカテゴリと性質の対応表。
// 新カテゴリの追加はここに1行足すだけで在庫エンジンに反映される。
var categoryTraits = map[ItemCategory]categoryTrait{
	CategoryFood:    {Consumable: true},
	CategoryFuel:    {Consumable: true},
	CategoryGear:    {Consumable: false},
	CategoryTent:    {Consumable: false},
	CategoryKitchen: {Consumable: false},
}

// Consumable はこのカテゴリが消耗品（パッキングで在庫を減算する）かを返す。
// 未知のカテゴリは返却品として扱う。
func (c ItemCategory) Consumable() bool {
	return categoryTraits[c].Consumable
}

// Valid はカテゴリが定義済みかを返す。
func (c ItemCategory) Valid() bool {
	_, ok := categoryTraits[c]
	return ok
}

// Condition は装備品の状態を表す。
type Condition string

const (
	ConditionGood   Condition = "good"
	ConditionFair   Condition = "fair"
	ConditionBroken Condition = "broken"
)

// InventoryItem は装備品の在庫レコードを表す。
// Quantityは常に0以上。減算はすべての取り消し経路（荷解き・計画からの削除・
// 貸出キャンセル・返却）で等量の復元と対になる。
type InventoryItem struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Category       ItemCategory `json:"category"`
	Quantity       int          `json:"quantity"`
	Location       string       `json:"location,omitempty"`
	AtCamp         bool         `json:"at_camp,omitempty"`
	QuantityAtCamp int          `json:"quantity_at_camp,omitempty"`
	Condition      Condition    `json:"condition,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// StockCorrection は棚卸しでの1品目分の補正内容を表す。
type StockCorrection struct {
	ItemID           string     `json:"item_id"`
	CountedQuantity  int        `json:"counted_quantity"`
	CountedCondition *Condition `json:"counted_condition,omitempty"`
}
