package domain

// ID is used across domain entities.
type ID int64

// RequestContext carries authenticated admin info when available.
type RequestContext struct {
	UserID ID     `json:"userId"`
	Role   string `json:"role"`
}
