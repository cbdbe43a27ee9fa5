package service

import (
	"github.com/paycore/internal/constants"
)

// orderTransitions 订单状态迁移图
var orderTransitions = map[string][]string{
	constants.OrderStatusCreated: {
		constants.OrderStatusPendingPayment,
		constants.OrderStatusCreateFailed,
		constants.OrderStatusCancelled,
		constants.OrderStatusTimeout,
	},
	constants.OrderStatusPendingPayment: {
		constants.OrderStatusPaid,
		constants.OrderStatusCancelled,
		constants.OrderStatusTimeout,
	},
	constants.OrderStatusPaid: {
		constants.OrderStatusRefundRequested,
	},
	constants.OrderStatusRefundRequested: {
		constants.OrderStatusRefunded,
		constants.OrderStatusRefundFailed,
	},
}

// canTransition 是否允许一步迁移
func canTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// isReachable 从 from 出发经过零步或多步能否到达 to
func isReachable(from, to string) bool {
	if from == to {
		return true
	}
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range orderTransitions[current] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// isKnownStatus 是否为合法订单状态
func isKnownStatus(status string) bool {
	switch status {
	case constants.OrderStatusCreated,
		constants.OrderStatusCreateFailed,
		constants.OrderStatusPendingPayment,
		constants.OrderStatusPaid,
		constants.OrderStatusCancelled,
		constants.OrderStatusTimeout,
		constants.OrderStatusRefundRequested,
		constants.OrderStatusRefunded,
		constants.OrderStatusRefundFailed:
		return true
	}
	return false
}

// isNotifiable 进入这些状态时通知监听器
func isNotifiable(status string) bool {
	switch status {
	case constants.OrderStatusPaid,
		constants.OrderStatusCancelled,
		constants.OrderStatusTimeout,
		constants.OrderStatusRefunded,
		constants.OrderStatusRefundFailed:
		return true
	}
	return false
}

// IsTerminal 调度器不再处理的状态
func IsTerminal(status string) bool {
	return isNotifiable(status) || status == constants.OrderStatusCreateFailed
}
