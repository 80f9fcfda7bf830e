package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

type MenuItem struct {
	ID           uuid.UUID      `json:"id"`
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	Name         string         `json:"name"`
	Price        pgtype.Numeric `json:"price"`
	OrderCount   int32          `json:"order_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Table struct {
	ID                  uuid.UUID   `json:"id"`
	RestaurantID        uuid.UUID   `json:"restaurant_id"`
	Name                int32       `json:"name"`
	Status              string      `json:"status"`
	CurrentOrderGroupID pgtype.UUID `json:"current_order_group_id"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

type OrderGroup struct {
	ID                  uuid.UUID          `json:"id"`
	RestaurantID        uuid.UUID          `json:"restaurant_id"`
	TableID             uuid.UUID          `json:"table_id"`
	PaymentRef          string             `json:"payment_ref"`
	TotalCost           pgtype.Numeric     `json:"total_cost"`
	PaymentStatus       string             `json:"payment_status"`
	PaymentMethod       pgtype.Text        `json:"payment_method"`
	PaymentDate         pgtype.Timestamptz `json:"payment_date"`
	OrderCountProcessed bool               `json:"order_count_processed"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

type Order struct {
	ID           uuid.UUID      `json:"id"`
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	TableID      uuid.UUID      `json:"table_id"`
	OrderGroupID uuid.UUID      `json:"order_group_id"`
	TotalCost    pgtype.Numeric `json:"total_cost"`
	Notes        string         `json:"notes"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Quantity   int32          `json:"quantity"`
	Price      pgtype.Numeric `json:"price"`
}

type Invoice struct {
	ID                uuid.UUID      `json:"id"`
	InvoiceNumber     string         `json:"invoice_number"`
	OrderGroupID      uuid.UUID      `json:"order_group_id"`
	RestaurantID      uuid.UUID      `json:"restaurant_id"`
	TableID           uuid.UUID      `json:"table_id"`
	TotalCost         pgtype.Numeric `json:"total_cost"`
	PaymentMethod     string         `json:"payment_method"`
	PaymentDate       time.Time      `json:"payment_date"`
	RestaurantName    string         `json:"restaurant_name"`
	RestaurantAddress string         `json:"restaurant_address"`
	CreatedAt         time.Time      `json:"created_at"`
}

type PaymentTransaction struct {
	TransactionID   string         `json:"transaction_id"`
	OrderGroupID    uuid.UUID      `json:"order_group_id"`
	Amount          pgtype.Numeric `json:"amount"`
	AccountNumber   string         `json:"account_number"`
	Content         string         `json:"content"`
	TransactionDate time.Time      `json:"transaction_date"`
	CreatedAt       time.Time      `json:"created_at"`
}
