package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品目录条目。目录维护不在本服务内，订单只读取它校验商品 id。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string `gorm:"size:512;not null" json:"name"`
	Description string `gorm:"size:16384" json:"description,omitempty"`
	Category    string `gorm:"size:255" json:"category,omitempty"`

	// Stock 首次设置库存前为 nil。
	Stock *StockRecord `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Product) TableName() string { return "products" }

// User 订单需要的用户信息子集。
type User struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Email         string    `gorm:"size:320;uniqueIndex;not null" json:"email"`
	EmailVerified bool      `gorm:"not null;default:false" json:"email_verified"`
}

func (User) TableName() string { return "users" }
