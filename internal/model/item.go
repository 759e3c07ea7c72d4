package model

import "time"

// Item is an active entry on the family list.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Cost      Cost      `json:"cost"`
	Link      string    `json:"link,omitempty"`
	Type      Category  `json:"type"`
	AddedBy   string    `json:"added_by"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category says whether an item is wanted or needed.
type Category string

// Item categories.
const (
	CategoryWant Category = "want"
	CategoryNeed Category = "need"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryWant || c == CategoryNeed
}

// Direction is the way an item moves by one slot.
type Direction string

// Move directions.
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is up or down.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// UnknownMember is recorded when nobody says who added an item.
const UnknownMember = "Unknown"
