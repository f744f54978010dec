package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"Pantheon-Lattice/internal/payment"
)

const transferGasLimit = 21000

// Config 描述链上结算所需的节点与国库信息。
type Config struct {
	RPCURL         string
	TreasuryKeyHex string
	ChainID        int64
}

// Client 通过 EVM 节点执行国库出账的原生转账。
// 收款方地址是十六进制链上地址，金额单位为 wei。
type Client struct {
	eth         *ethclient.Client
	treasuryKey *ecdsa.PrivateKey
	treasury    common.Address
	chainID     *big.Int
}

var _ payment.Client = (*Client)(nil)

// NewClient 连接节点并解析国库私钥。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置链上 RPC 地址")
	}
	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.TreasuryKeyHex), "0x")
	if keyHex == "" {
		return nil, errors.New("未配置国库私钥")
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("解析国库私钥失败: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接链上节点失败: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID <= 0 {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("获取链 ID 失败: %w", err)
		}
	}

	return &Client{
		eth:         eth,
		treasuryKey: key,
		treasury:    crypto.PubkeyToAddress(key.PublicKey),
		chainID:     chainID,
	}, nil
}

// Transfer 以国库身份签名并广播一笔原生转账。
func (c *Client) Transfer(ctx context.Context, req payment.Transfer) (payment.Receipt, error) {
	if err := payment.ValidateTransfer(req); err != nil {
		return payment.Receipt{}, err
	}
	if !common.IsHexAddress(req.To) {
		return payment.Receipt{}, fmt.Errorf("非法的链上地址: %s", req.To)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.treasury)
	if err != nil {
		return payment.Receipt{}, fmt.Errorf("查询国库 nonce 失败: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return payment.Receipt{}, fmt.Errorf("获取 gas 价格失败: %w", err)
	}

	to := common.HexToAddress(req.To)
	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(req.Amount),
		Gas:      transferGasLimit,
		GasPrice: gasPrice,
	})

	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(c.chainID), c.treasuryKey)
	if err != nil {
		return payment.Receipt{}, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return payment.Receipt{}, fmt.Errorf("广播交易失败: %w", err)
	}

	return payment.Receipt{
		Status:    payment.StatusPending,
		Reference: signed.Hash().Hex(),
	}, nil
}

// Balance 查询链上地址余额（wei）。
func (c *Client) Balance(ctx context.Context, address string) (int64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("非法的链上地址: %s", address)
	}
	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("查询余额失败: %w", err)
	}
	return balance.Int64(), nil
}

// TreasuryAddress 返回国库的链上地址。
func (c *Client) TreasuryAddress() string {
	return c.treasury.Hex()
}

// Close 关闭节点连接。
func (c *Client) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}
