package channel

import (
	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/repository"
)

// DefaultStrategies 内置的微信交易类型策略
func DefaultStrategies(store repository.ChannelConfigRepository) []Strategy {
	return []Strategy{
		NewStoreStrategy(constants.TradeTypeWechatNative, constants.ChannelKindWechat, store),
		NewStoreStrategy(constants.TradeTypeWechatH5, constants.ChannelKindWechat, store),
		NewStoreStrategy(constants.TradeTypeWechatJSAPI, constants.ChannelKindWechat, store),
		NewStoreStrategy(constants.TradeTypeWechatPaymentPoints, constants.ChannelKindWechat, store),
	}
}

// TradeSourceOf 渠道类型对应的交易来源，用于回调与通知路由
func TradeSourceOf(channelKind string) string {
	switch channelKind {
	case constants.ChannelKindWechat:
		return constants.TradeSourceWechat
	default:
		return channelKind
	}
}
