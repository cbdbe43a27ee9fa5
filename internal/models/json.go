package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON 通用 JSON 对象类型
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	if len(raw) == 0 {
		*j = make(JSON)
		return nil
	}
	return json.Unmarshal(raw, j)
}
