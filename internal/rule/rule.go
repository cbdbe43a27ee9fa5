// Package rule 提供交易描述的格式化规则，按渠道配置中的规则名选择。
package rule

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/models"
)

// 微信支付 description 字段上限
const maxDescriptionRunes = 127

// Payload 请求级描述数据
type Payload struct {
	OrderNo     string
	BusinessKey string
	Description string
	Attributes  map[string]string
}

// DescriptionRule 描述格式化规则，纯函数无状态
type DescriptionRule interface {
	Name() string
	Describe(cfg *models.ChannelConfig, payload Payload) string
}

// Registry 规则注册表，未命中时回落到默认规则
type Registry struct {
	mu    sync.RWMutex
	rules map[string]DescriptionRule
	def   DescriptionRule
}

// NewRegistry 创建注册表，默认规则总是存在
func NewRegistry(rules ...DescriptionRule) *Registry {
	r := &Registry{
		rules: make(map[string]DescriptionRule),
		def:   PassThrough{},
	}
	r.Register(r.def)
	for _, rule := range rules {
		r.Register(rule)
	}
	return r
}

// Register 注册规则
func (r *Registry) Register(rule DescriptionRule) {
	if rule == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[strings.ToLower(strings.TrimSpace(rule.Name()))] = rule
}

// Lookup 按名称查找规则，空名称或未知名称返回默认规则
func (r *Registry) Lookup(name string) DescriptionRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rule, ok := r.rules[strings.ToLower(strings.TrimSpace(name))]; ok {
		return rule
	}
	return r.def
}

// Describe 使用配置指定的规则生成描述
func (r *Registry) Describe(cfg *models.ChannelConfig, payload Payload) string {
	name := ""
	if cfg != nil {
		name = cfg.RuleName
	}
	return truncateRunes(r.Lookup(name).Describe(cfg, payload), maxDescriptionRunes)
}

// PassThrough 默认规则，原样返回调用方描述
type PassThrough struct{}

// Name 规则名称
func (PassThrough) Name() string { return constants.RuleNameDefault }

// Describe 原样返回
func (PassThrough) Describe(_ *models.ChannelConfig, payload Payload) string {
	return payload.Description
}

// PaymentPoints 支付分规则，在描述前拼接渠道配置的服务介绍
type PaymentPoints struct{}

// Name 规则名称
func (PaymentPoints) Name() string { return constants.RuleNamePaymentPoints }

// Describe 生成 "服务介绍-描述"，任一为空时只保留另一个
func (PaymentPoints) Describe(cfg *models.ChannelConfig, payload Payload) string {
	intro := strings.TrimSpace(cfg.ConfigString("service_introduction"))
	desc := strings.TrimSpace(payload.Description)
	switch {
	case intro == "":
		return desc
	case desc == "":
		return intro
	default:
		return intro + "-" + desc
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
