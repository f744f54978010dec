package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryClient 在进程内记账，供测试与离线运行使用。
// 出账方余额允许为负：国库的算力信用由记账层铸造。
type MemoryClient struct {
	mu       sync.Mutex
	balances map[string]int64
	history  []Transfer
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient 创建空账本。
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{balances: make(map[string]int64)}
}

// Transfer 执行进程内转账。
func (c *MemoryClient) Transfer(_ context.Context, req Transfer) (Receipt, error) {
	if err := ValidateTransfer(req); err != nil {
		return Receipt{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.balances[req.From] -= req.Amount
	c.balances[req.To] += req.Amount
	c.history = append(c.history, req)

	return Receipt{Status: StatusSettled, Reference: uuid.NewString()}, nil
}

// Balance 返回地址当前余额。
func (c *MemoryClient) Balance(_ context.Context, address string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address], nil
}

// History 返回全部转账记录，供测试断言。
func (c *MemoryClient) History() []Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transfer, len(c.history))
	copy(out, c.history)
	return out
}
