package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Pantheon-Lattice/internal/payment"
)

const defaultTimeout = 15 * time.Second

// Config 描述 LNbits 实例的访问信息。AdminKey 是国库钱包的出账密钥。
type Config struct {
	URL      string
	AdminKey string
	Timeout  time.Duration
}

// Client 通过 LNbits 在闪电网络上完成记账转账。
// 收款方地址是其 LNbits 钱包的 invoice key：
// 先用它开发票，再用国库 admin key 支付发票。
type Client struct {
	baseURL    string
	adminKey   string
	httpClient *http.Client
}

var _ payment.Client = (*Client)(nil)

// NewClient 根据配置创建 LNbits 客户端。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("未配置 LNbits 地址")
	}
	adminKey := strings.TrimSpace(cfg.AdminKey)
	if adminKey == "" {
		return nil, errors.New("未配置 LNbits admin key")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminKey:   adminKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Transfer 先以收款方身份开具发票，再用国库钱包支付。
func (c *Client) Transfer(ctx context.Context, req payment.Transfer) (payment.Receipt, error) {
	if err := payment.ValidateTransfer(req); err != nil {
		return payment.Receipt{}, err
	}

	invoice, err := c.createInvoice(ctx, req.To, req.Amount, req.Memo)
	if err != nil {
		return payment.Receipt{}, fmt.Errorf("开具发票失败: %w", err)
	}

	hash, err := c.payInvoice(ctx, invoice)
	if err != nil {
		return payment.Receipt{}, fmt.Errorf("支付发票失败: %w", err)
	}

	return payment.Receipt{Status: payment.StatusSettled, Reference: hash}, nil
}

// Balance 查询钱包余额。LNbits 返回毫聪，这里换算为聪。
func (c *Client) Balance(ctx context.Context, address string) (int64, error) {
	var decoded struct {
		Balance int64 `json:"balance"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/wallet", address, nil, &decoded); err != nil {
		return 0, fmt.Errorf("查询钱包余额失败: %w", err)
	}
	return decoded.Balance / 1000, nil
}

func (c *Client) createInvoice(ctx context.Context, invoiceKey string, amount int64, memo string) (string, error) {
	body := map[string]any{
		"out":    false,
		"amount": amount,
		"memo":   memo,
	}
	var decoded struct {
		PaymentRequest string `json:"payment_request"`
		Bolt11         string `json:"bolt11"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/payments", invoiceKey, body, &decoded); err != nil {
		return "", err
	}
	invoice := decoded.PaymentRequest
	if invoice == "" {
		invoice = decoded.Bolt11
	}
	if invoice == "" {
		return "", errors.New("LNbits 响应缺少 payment_request")
	}
	return invoice, nil
}

func (c *Client) payInvoice(ctx context.Context, bolt11 string) (string, error) {
	body := map[string]any{
		"out":    true,
		"bolt11": bolt11,
	}
	var decoded struct {
		PaymentHash string `json:"payment_hash"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/payments", c.adminKey, body, &decoded); err != nil {
		return "", err
	}
	if decoded.PaymentHash == "" {
		return "", errors.New("LNbits 响应缺少 payment_hash")
	}
	return decoded.PaymentHash, nil
}

func (c *Client) call(ctx context.Context, method, path, apiKey string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化 LNbits 请求失败: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("构建 LNbits 请求失败: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("请求 LNbits 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("LNbits 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 LNbits 响应失败: %w", err)
	}
	return nil
}
