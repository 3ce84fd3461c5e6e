// Package models описывает документы хранилища: товары (сладости), аккаунты,
// записи журнала потребления и заявки.
// Эти структуры общие для всех features и для реализаций хранилища.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxStock — верхняя граница остатка (колонка stock имеет тип INTEGER).
const MaxStock = math.MaxInt32

// Role — роль аккаунта.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Item — позиция каталога (один вид сладостей).
// Инвариант: Stock >= 0. Меняется только через CRUD админки или движок журнала.
type Item struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"imageUrl" db:"image_url"`
	Price       int64     `json:"price" db:"price"` // Цена в иенах (целое)
	Stock       int       `json:"stock" db:"stock"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate проверяет обязательные поля и неотрицательность цены/остатка.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if i.Price < 0 {
		return fmt.Errorf("price must be >= 0")
	}
	if i.Stock < 0 {
		return fmt.Errorf("stock must be >= 0")
	}
	if i.Stock > MaxStock {
		return fmt.Errorf("stock must be <= %d", MaxStock)
	}
	return nil
}

// Account — пользователь чата и его текущий долг.
// ID совпадает с идентификатором пользователя в мессенджере.
// CurrentBalance отрицательный, когда пользователь должен.
type Account struct {
	ID             string    `json:"id" db:"id"`
	DisplayName    string    `json:"displayName" db:"display_name"`
	PictureURL     string    `json:"pictureUrl" db:"picture_url"`
	Role           Role      `json:"role" db:"role"`
	CurrentBalance int64     `json:"currentBalance" db:"current_balance"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin сообщает, является ли аккаунт администратором.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Плейсхолдеры профиля, когда мессенджер не отдал данные.
const (
	UnknownDisplayName = "Unknown User"
	DefaultDisplayName = "User"
)

// LedgerEntry — неизменяемая запись о потреблении.
// Имя и цена сохраняются снимком: переименование или смена цены товара
// не влияют на историю.
type LedgerEntry struct {
	ID               string    `json:"id" db:"id"`
	AccountID        string    `json:"accountId" db:"account_id"`
	ItemID           string    `json:"itemId" db:"item_id"`
	ItemNameSnapshot string    `json:"itemName" db:"item_name"`
	Quantity         int       `json:"quantity" db:"quantity"`
	PriceAtTime      int64     `json:"priceAtTime" db:"price_at_time"`
	Billed           bool      `json:"billed" db:"billed"` // false — списание только со склада (чат-команда)
	Timestamp        time.Time `json:"timestamp" db:"created_at"`
}

// RequestStatus — статус заявки.
type RequestStatus string

const (
	RequestRequested RequestStatus = "requested"
	RequestPurchased RequestStatus = "purchased"
	RequestRejected  RequestStatus = "rejected"
)

// ParseRequestStatus разбирает статус из строки API.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case RequestRequested, RequestPurchased, RequestRejected:
		return RequestStatus(s), nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// Request — пожелание купить сладость, которой нет в каталоге.
// RequestedItemName — свободный текст, не внешний ключ.
type Request struct {
	ID                string        `json:"id" db:"id"`
	AccountID         string        `json:"accountId" db:"account_id"`
	AccountName       string        `json:"accountName" db:"account_name"`
	RequestedItemName string        `json:"requestedItemName" db:"requested_item_name"`
	Description       string        `json:"description" db:"description"`
	Status            RequestStatus `json:"status" db:"status"`
	ProcessedBy       string        `json:"processedBy,omitempty" db:"processed_by"`
	ProcessedAt       *time.Time    `json:"processedAt,omitempty" db:"processed_at"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time     `json:"updatedAt" db:"updated_at"`
}

// Profile — данные профиля из мессенджера или провайдера входа.
type Profile struct {
	DisplayName string
	PictureURL  string
}
