package repository

import (
	"context"
	"testing"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/models"
)

func TestChannelConfigRepositoryFindActive(t *testing.T) {
	_, db := setupOrderRepositoryTest(t)
	repo := NewChannelConfigRepository(db)
	ctx := context.Background()

	rows := []models.ChannelConfig{
		{MerchantID: 1, TradeType: constants.TradeTypeWechatH5, ChannelKind: constants.ChannelKindWechat, Status: constants.ChannelConfigStatusInactive, Name: "h5-old"},
		{MerchantID: 1, TradeType: constants.TradeTypeWechatH5, ChannelKind: constants.ChannelKindWechat, Status: constants.ChannelConfigStatusActive, Name: "h5-a"},
		{MerchantID: 1, TradeType: constants.TradeTypeWechatH5, ChannelKind: constants.ChannelKindWechat, Status: constants.ChannelConfigStatusActive, Name: "h5-b"},
		{MerchantID: 1, TradeType: constants.TradeTypeWechatH5, ChannelKind: constants.ChannelKindWechat, Status: constants.ChannelConfigStatusActive, Name: "h5-c"},
		{MerchantID: 2, TradeType: constants.TradeTypeWechatNative, ChannelKind: constants.ChannelKindWechat, Status: constants.ChannelConfigStatusActive, Name: "native"},
	}
	for i := range rows {
		if err := repo.Create(ctx, &rows[i]); err != nil {
			t.Fatalf("create channel config failed: %v", err)
		}
	}

	got, err := repo.FindActive(ctx, 1, constants.TradeTypeWechatH5, constants.ChannelKindWechat)
	if err != nil {
		t.Fatalf("find active failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("find active should cap at two rows, got %d", len(got))
	}
	if got[0].Name != "h5-a" || got[1].Name != "h5-b" {
		t.Fatalf("rows must be ordered by id, got %s,%s", got[0].Name, got[1].Name)
	}

	got, err = repo.FindActive(ctx, 2, constants.TradeTypeWechatH5, constants.ChannelKindWechat)
	if err != nil {
		t.Fatalf("find active failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("merchant 2 has no h5 config, got %d rows", len(got))
	}
}

func TestMerchantRepositoryListEffective(t *testing.T) {
	_, db := setupOrderRepositoryTest(t)
	repo := NewMerchantRepository(db)
	ctx := context.Background()

	merchants := []models.Merchant{
		{MerchantNo: "M-OPEN", Name: "open", IsOpen: true, OrderTimeoutMinutes: 30},
		{MerchantNo: "M-CLOSED", Name: "closed", IsOpen: false, OrderTimeoutMinutes: 30},
		{MerchantNo: "M-NOTIMEOUT", Name: "no timeout", IsOpen: true, OrderTimeoutMinutes: 30},
	}
	for i := range merchants {
		if err := repo.Create(ctx, &merchants[i]); err != nil {
			t.Fatalf("create merchant failed: %v", err)
		}
	}
	// gorm 会忽略零值，关闭状态与超时需显式更新
	if err := db.Model(&models.Merchant{}).Where("merchant_no = ?", "M-CLOSED").Update("is_open", false).Error; err != nil {
		t.Fatalf("close merchant failed: %v", err)
	}
	if err := db.Model(&models.Merchant{}).Where("merchant_no = ?", "M-NOTIMEOUT").Update("order_timeout_minutes", 0).Error; err != nil {
		t.Fatalf("clear timeout failed: %v", err)
	}

	got, err := repo.ListEffective(ctx)
	if err != nil {
		t.Fatalf("list effective failed: %v", err)
	}
	if len(got) != 1 || got[0].MerchantNo != "M-OPEN" {
		t.Fatalf("expected only M-OPEN, got %+v", got)
	}

	byNo, err := repo.GetByMerchantNo(ctx, " M-OPEN ")
	if err != nil || byNo == nil || byNo.ID != got[0].ID {
		t.Fatalf("get by merchant no failed: %v %+v", err, byNo)
	}
	missing, err := repo.GetByMerchantNo(ctx, "M-NONE")
	if err != nil || missing != nil {
		t.Fatalf("missing merchant should return nil,nil got %+v %v", missing, err)
	}
}
