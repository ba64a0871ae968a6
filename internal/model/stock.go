package model

import "time"

// StockRecord 单个商品的可用库存，Quantity 永不为负（见 store.DecrementStock）。
type StockRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID uint `gorm:"not null;uniqueIndex" json:"product_id"`
	Quantity  int  `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
}

func (StockRecord) TableName() string { return "stock_records" }
