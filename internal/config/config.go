package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"Pantheon-Lattice/pkg/logger"
)

// EnvConfigPath 允许通过环境变量覆盖配置文件路径。
const EnvConfigPath = "LATTICE_CONFIG"

// Config 描述 latticed 启动阶段需要加载的全部配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	LLM     LLMConfig     `json:"llm"`
	Payment PaymentConfig `json:"payment"`
	Economy EconomyConfig `json:"economy"`
	Memory  MemoryConfig  `json:"memory"`
	Observe ObserveConfig `json:"observe"`
	Archive ArchiveConfig `json:"archive"`
	Actors  ActorsConfig  `json:"actors"`
	Logging logger.Config `json:"logging"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// StorageConfig 描述议事状态所依赖的键值存储。
// driver 为 memory 时使用进程内实现，redis 时连接真实 Redis。
type StorageConfig struct {
	Driver   string `json:"driver"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LLMConfig 配置人格回复与综合所依赖的推理后端。
// Hosts 按优先级排列，前面的不可用时回退到后面的。
type LLMConfig struct {
	Hosts          []string `json:"hosts"`
	Model          string   `json:"model"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// Timeout 返回单次推理调用的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PaymentConfig 配置算力记账背后的支付通道。
// driver 支持 memory、lnbits、chain 三种实现。
type PaymentConfig struct {
	Driver string       `json:"driver"`
	LNbits LNbitsConfig `json:"lnbits"`
	Chain  ChainConfig  `json:"chain"`
}

// LNbitsConfig 描述 LNbits 实例的访问信息。
type LNbitsConfig struct {
	URL            string `json:"url"`
	AdminKey       string `json:"admin_key"`
	InvoiceKey     string `json:"invoice_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ChainConfig 描述链上结算所需的 RPC 地址与国库私钥。
type ChainConfig struct {
	RPCURL          string `json:"rpc_url"`
	TreasuryKeyHex  string `json:"treasury_key_hex"`
	ChainID         int64  `json:"chain_id"`
	ConfirmSeconds  int    `json:"confirm_seconds"`
}

// EconomyConfig 配置结算相关的运行参数。
type EconomyConfig struct {
	// PoolTTLHours 是会话资金池无活动后的过期时间。
	PoolTTLHours int `json:"pool_ttl_hours"`
	// AuditCap 是审计流水保留的最大条数。
	AuditCap int `json:"audit_cap"`
}

// PoolTTL 返回会话资金池的过期时间。
func (c EconomyConfig) PoolTTL() time.Duration {
	return time.Duration(c.PoolTTLHours) * time.Hour
}

// MemoryConfig 配置参与者记忆的容量上限。
type MemoryConfig struct {
	MaxMessages       int64 `json:"max_messages"`
	MaxObservations   int64 `json:"max_observations"`
	VocabularyTTLDays int   `json:"vocabulary_ttl_days"`
}

// VocabularyTTL 返回词汇集合的过期时间。
func (c MemoryConfig) VocabularyTTL() time.Duration {
	return time.Duration(c.VocabularyTTLDays) * 24 * time.Hour
}

// ObserveConfig 配置后台观察任务队列。
// driver 支持 memory、redis、rabbitmq。
type ObserveConfig struct {
	Driver    string `json:"driver"`
	RedisAddr string `json:"redis_addr"`
	AMQPURL   string `json:"amqp_url"`
	QueueName string `json:"queue_name"`
	Workers   int    `json:"workers"`
}

// ArchiveConfig 配置议事归档存储。driver 支持 memory、mysql。
type ArchiveConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// ActorsConfig 指向人格定义文件。
type ActorsConfig struct {
	Path string `json:"path"`
}

// Load 解析指定路径的 JSON 配置文件。
// path 为空时回退到 LATTICE_CONFIG 环境变量。
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Addr == "" {
		c.Storage.Addr = "127.0.0.1:6379"
	}

	if len(c.LLM.Hosts) == 0 {
		c.LLM.Hosts = []string{"http://127.0.0.1:11434"}
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.2"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}

	if c.Payment.Driver == "" {
		c.Payment.Driver = "memory"
	}
	if c.Payment.LNbits.TimeoutSeconds <= 0 {
		c.Payment.LNbits.TimeoutSeconds = 15
	}
	if c.Payment.Chain.ConfirmSeconds <= 0 {
		c.Payment.Chain.ConfirmSeconds = 30
	}

	if c.Economy.PoolTTLHours <= 0 {
		c.Economy.PoolTTLHours = 24
	}
	if c.Economy.AuditCap <= 0 {
		c.Economy.AuditCap = 500
	}

	if c.Memory.MaxMessages <= 0 {
		c.Memory.MaxMessages = 100
	}
	if c.Memory.MaxObservations <= 0 {
		c.Memory.MaxObservations = 20
	}
	if c.Memory.VocabularyTTLDays <= 0 {
		c.Memory.VocabularyTTLDays = 30
	}

	if c.Observe.Driver == "" {
		c.Observe.Driver = "memory"
	}
	if c.Observe.QueueName == "" {
		c.Observe.QueueName = "lattice:observations"
	}
	if c.Observe.Workers <= 0 {
		c.Observe.Workers = 2
	}

	if c.Archive.Driver == "" {
		c.Archive.Driver = "memory"
	}

	if c.Actors.Path == "" {
		c.Actors.Path = filepath.Join(baseDir, "actors.yaml")
	} else if !filepath.IsAbs(c.Actors.Path) {
		c.Actors.Path = filepath.Join(baseDir, c.Actors.Path)
	}
}
