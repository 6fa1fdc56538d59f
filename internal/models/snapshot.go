package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CartSnapshot is the cart as it was charged, stored as JSONB in the ledger.
type CartSnapshot Cart

// Value implements driver.Valuer
func (s CartSnapshot) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *CartSnapshot) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = CartSnapshot{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported cart snapshot type %T", src)
	}
	return json.Unmarshal(data, (*Cart)(s))
}
