// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// Validation errors for Item.
var (
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrNameTooLong      = errors.New("name cannot exceed 255 characters")
	ErrNegativePosition = errors.New("position cannot be negative")
	ErrEmptyListID      = errors.New("list ID cannot be empty")
	ErrEmptyItemID      = errors.New("item ID cannot be empty")
)

// MaxNameLength is the longest accepted item name, in bytes.
const MaxNameLength = 255

// Item is a single task entry of one list instance, owned by one user.
type Item struct {
	ID        string    `json:"id"`
	ListID    string    `json:"list_id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Complete  bool      `json:"complete"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Persisted reports whether the item has been assigned an ID by the server.
func (i *Item) Persisted() bool {
	return i.ID != ""
}

// Validate checks if the Item has valid field values.
func (i *Item) Validate() error {
	if err := validateName(i.Name); err != nil {
		return err
	}

	if i.Position < 0 {
		return ErrNegativePosition
	}

	return nil
}

// ToUpdate returns the full mutable state of the item as a bulk update entry.
func (i *Item) ToUpdate() ItemUpdate {
	return ItemUpdate{
		ID:       i.ID,
		Name:     i.Name,
		Position: i.Position,
		Complete: i.Complete,
	}
}

// CreateItemRequest is the body of a create call.
type CreateItemRequest struct {
	Name     string `json:"name"`
	Complete bool   `json:"complete"`
	Position int    `json:"position"`
}

// Validate checks if the request has valid field values.
func (r *CreateItemRequest) Validate() error {
	if err := validateName(r.Name); err != nil {
		return err
	}

	if r.Position < 0 {
		return ErrNegativePosition
	}

	return nil
}

// ItemUpdate carries the full client-side state of one item in a bulk update.
type ItemUpdate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Complete bool   `json:"complete"`
}

// Validate checks if the update entry has valid field values.
func (u *ItemUpdate) Validate() error {
	if u.ID == "" {
		return ErrEmptyItemID
	}

	if err := validateName(u.Name); err != nil {
		return err
	}

	if u.Position < 0 {
		return ErrNegativePosition
	}

	return nil
}

// UpdateItemsRequest is the body of a bulk update call.
type UpdateItemsRequest struct {
	Items []ItemUpdate `json:"items"`
}

// UpdateItemsResult reports how many items a bulk update wrote.
type UpdateItemsResult struct {
	Updated int `json:"updated"`
}

// DeleteItemResult reports whether a delete call removed a row.
type DeleteItemResult struct {
	Success bool `json:"success"`
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}

	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}

	return nil
}

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error API response.
func NewErrorResponse[T any](errMsg string) APIResponse[T] {
	return APIResponse[T]{
		Success: false,
		Error:   errMsg,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
