package payment

import (
	"context"

	xerrors "Pantheon-Lattice/internal/errors"
)

// 转账回执状态。
const (
	StatusSettled = "settled"
	StatusPending = "pending"
)

// Receipt 是一次转账的回执。Reference 是支付通道内的唯一凭据，
// 闪电网络下为 payment hash，链上为交易哈希。
type Receipt struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

// Transfer 描述一次转账请求。地址语义由具体通道解释。
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

// Client 定义支付通道的统一接口。
type Client interface {
	// Transfer 执行一次转账。金额必须为正数。
	Transfer(ctx context.Context, req Transfer) (Receipt, error)
	// Balance 查询地址余额。
	Balance(ctx context.Context, address string) (int64, error)
}

// ValidateTransfer 做所有通道共用的参数检查。
func ValidateTransfer(req Transfer) error {
	if req.Amount <= 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "转账金额必须为正数")
	}
	if req.To == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "转账目标地址不能为空")
	}
	return nil
}
