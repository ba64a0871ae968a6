package model

import (
	"time"
)

// OrderStatus 订单状态（封闭集合），目前服务只会写入 StatusPending。
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusFulfilled OrderStatus = "Fulfilled"
	StatusCancelled OrderStatus = "Cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusFulfilled, StatusCancelled:
		return true
	}
	return false
}

// Order 订单聚合，归属唯一用户。
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint        `gorm:"not null;index" json:"user_id"`
	Status OrderStatus `gorm:"size:32;not null" json:"status"`

	PaymentRef  *string `gorm:"size:128" json:"payment_ref,omitempty"`
	ShipmentRef *string `gorm:"size:128" json:"shipment_ref,omitempty"`

	Items []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 订单明细（商品, 数量），只在扣减库存时创建，商品引用创建后不可改。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID   uint `gorm:"not null;index" json:"order_id"`
	ProductID uint `gorm:"<-:create;not null;index" json:"product_id"`
	Quantity  int  `gorm:"not null;check:quantity > 0" json:"quantity"`

	Dispatched   bool       `gorm:"not null;default:false" json:"dispatched"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
}

func (OrderItem) TableName() string { return "order_items" }
