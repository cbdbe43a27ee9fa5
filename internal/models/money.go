package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var fenFactor = decimal.NewFromInt(100)

// ErrMoneyPrecision 金额精度超过分
var ErrMoneyPrecision = errors.New("amount precision exceeds fen")

// Money 统一金额类型（保留 2 位小数）
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal 从 decimal 创建金额
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(2)}
}

// NewMoneyFromString 从字符串创建金额，超过 2 位小数视为非法
func NewMoneyFromString(raw string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Money{}, err
	}
	if !d.Equal(d.Round(2)) {
		return Money{}, ErrMoneyPrecision
	}
	return Money{Decimal: d}, nil
}

// NewMoneyFromFen 从分创建金额
func NewMoneyFromFen(fen int64) Money {
	return Money{Decimal: decimal.NewFromInt(fen).Div(fenFactor).Round(2)}
}

// Fen 转换为分（四舍五入）
func (m Money) Fen() int64 {
	return m.Decimal.Mul(fenFactor).Round(0).IntPart()
}

// IsPositive 金额是否大于 0
func (m Money) IsPositive() bool {
	return m.Decimal.GreaterThan(decimal.Zero)
}

// MarshalJSON 统一输出 2 位小数的字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.Round(2).StringFixed(2))
}

// UnmarshalJSON 解析金额（字符串或数字）
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		m.Decimal = d.Round(2)
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	m.Decimal = d.Round(2)
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(2).Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(2)
	return nil
}

// String 返回 2 位小数格式
func (m Money) String() string {
	return m.Decimal.Round(2).StringFixed(2)
}
