package rule

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/paycore/internal/models"
)

func TestRegistryFallsBackToPassThrough(t *testing.T) {
	reg := NewRegistry(PaymentPoints{})
	payload := Payload{Description: "会员月卡"}

	cases := []struct {
		name string
		cfg  *models.ChannelConfig
		want string
	}{
		{name: "nil config", cfg: nil, want: "会员月卡"},
		{name: "empty rule", cfg: &models.ChannelConfig{}, want: "会员月卡"},
		{name: "unknown rule", cfg: &models.ChannelConfig{RuleName: "coupon"}, want: "会员月卡"},
		{
			name: "payment points",
			cfg: &models.ChannelConfig{
				RuleName:   " Payment_Points ",
				ConfigJSON: models.JSON{"service_introduction": "充电宝租借"},
			},
			want: "充电宝租借-会员月卡",
		},
	}
	for _, tc := range cases {
		if got := reg.Describe(tc.cfg, payload); got != tc.want {
			t.Fatalf("%s: want %q got %q", tc.name, tc.want, got)
		}
	}
}

func TestPaymentPointsWithoutIntroduction(t *testing.T) {
	cfg := &models.ChannelConfig{RuleName: "payment_points"}
	if got := (PaymentPoints{}).Describe(cfg, Payload{Description: "押金"}); got != "押金" {
		t.Fatalf("want 押金 got %q", got)
	}
	cfg.ConfigJSON = models.JSON{"service_introduction": "租借"}
	if got := (PaymentPoints{}).Describe(cfg, Payload{}); got != "租借" {
		t.Fatalf("want 租借 got %q", got)
	}
}

func TestDescribeTruncatesToProviderLimit(t *testing.T) {
	reg := NewRegistry()
	long := strings.Repeat("订", 200)
	got := reg.Describe(nil, Payload{Description: long})
	if utf8.RuneCountInString(got) != maxDescriptionRunes {
		t.Fatalf("description should be truncated to %d runes, got %d", maxDescriptionRunes, utf8.RuneCountInString(got))
	}
}
