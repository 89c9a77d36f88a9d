package models

import (
	"time"

	"github.com/gocql/gocql"
)

// AuditLog records one admin or authentication action.
type AuditLog struct {
	ID         gocql.UUID `json:"id"`
	Actor      string     `json:"actor"`
	Action     string     `json:"action"`
	Resource   string     `json:"resource"`
	ResourceID string     `json:"resource_id,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
	Success    bool       `json:"success"`
	ErrorMsg   string     `json:"error_msg,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

const (
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"
	ActionMediaUpload   = "media.upload"
	ActionMediaDelete   = "media.delete"
	ActionOrderUpdate   = "order.update"
	ActionOrderDelete   = "order.delete"
	ActionLoginSuccess  = "auth.login_success"
	ActionLoginFailed   = "auth.login_failed"
	ActionLogout        = "auth.logout"
)

const (
	ResourceProduct = "product"
	ResourceMedia   = "media"
	ResourceOrder   = "order"
	ResourceAuth    = "auth"
)
