package service

import (
	"testing"

	"github.com/paycore/internal/constants"
)

func TestStateGraph(t *testing.T) {
	cases := []struct {
		from, to  string
		step      bool
		reachable bool
	}{
		{constants.OrderStatusCreated, constants.OrderStatusPendingPayment, true, true},
		{constants.OrderStatusCreated, constants.OrderStatusTimeout, true, true},
		{constants.OrderStatusCreated, constants.OrderStatusCancelled, true, true},
		{constants.OrderStatusCreated, constants.OrderStatusPaid, false, true},
		{constants.OrderStatusCreateFailed, constants.OrderStatusTimeout, false, false},
		{constants.OrderStatusPendingPayment, constants.OrderStatusPaid, true, true},
		{constants.OrderStatusPendingPayment, constants.OrderStatusRefunded, false, true},
		{constants.OrderStatusPaid, constants.OrderStatusRefundFailed, false, true},
		{constants.OrderStatusPaid, constants.OrderStatusPaid, false, true},
		{constants.OrderStatusTimeout, constants.OrderStatusPaid, false, false},
		{constants.OrderStatusPaid, constants.OrderStatusCancelled, false, false},
		{constants.OrderStatusCancelled, constants.OrderStatusTimeout, false, false},
		{constants.OrderStatusRefundFailed, constants.OrderStatusRefundRequested, false, false},
	}
	for _, tc := range cases {
		if got := canTransition(tc.from, tc.to); got != tc.step {
			t.Fatalf("canTransition(%s,%s)=%v want %v", tc.from, tc.to, got, tc.step)
		}
		if got := isReachable(tc.from, tc.to); got != tc.reachable {
			t.Fatalf("isReachable(%s,%s)=%v want %v", tc.from, tc.to, got, tc.reachable)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range []string{
		constants.OrderStatusPaid,
		constants.OrderStatusCancelled,
		constants.OrderStatusTimeout,
		constants.OrderStatusRefunded,
		constants.OrderStatusRefundFailed,
		constants.OrderStatusCreateFailed,
	} {
		if !IsTerminal(status) {
			t.Fatalf("%s should be terminal", status)
		}
	}
	for _, status := range []string{constants.OrderStatusCreated, constants.OrderStatusPendingPayment, constants.OrderStatusRefundRequested} {
		if IsTerminal(status) {
			t.Fatalf("%s should not be terminal", status)
		}
	}
}
