package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Pantheon-Lattice/internal/actor"
	"Pantheon-Lattice/internal/api"
	"Pantheon-Lattice/internal/archive"
	"Pantheon-Lattice/internal/config"
	"Pantheon-Lattice/internal/deliberation"
	"Pantheon-Lattice/internal/economy"
	"Pantheon-Lattice/internal/engagement"
	"Pantheon-Lattice/internal/llm"
	"Pantheon-Lattice/internal/llm/ollama"
	"Pantheon-Lattice/internal/memory"
	"Pantheon-Lattice/internal/observe"
	"Pantheon-Lattice/internal/payment"
	"Pantheon-Lattice/internal/payment/chain"
	"Pantheon-Lattice/internal/payment/lnbits"
	"Pantheon-Lattice/internal/session"
	"Pantheon-Lattice/internal/storage"
	redisstore "Pantheon-Lattice/internal/storage/redis"
	"Pantheon-Lattice/pkg/logger"
)

// main 是 lattice 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("latticed 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv(config.EnvConfigPath)
	if configPath == "" {
		configPath = filepath.Join("configs", "lattice.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()

	defs, err := actor.LoadDefinitions(cfg.Actors.Path)
	if err != nil {
		return err
	}
	registry, err := actor.NewRegistry(defs)
	if err != nil {
		return err
	}

	store, err := createStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	payments, closePayments, err := createPaymentClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePayments()

	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	rounds, err := createArchive(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rounds.Close() }()

	participantMemory := memory.NewParticipantMemory(store, memory.Config{
		MaxMessages:     cfg.Memory.MaxMessages,
		MaxObservations: cfg.Memory.MaxObservations,
		VocabularyTTL:   cfg.Memory.VocabularyTTL(),
	})
	sessions := session.NewPool(store, cfg.Economy.PoolTTL())
	ledger := economy.NewLedger(registry, payments)
	auditCap := int64(cfg.Economy.AuditCap)

	queue, err := createObserveQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			log.Printf("关闭观察队列失败: %v", err)
		}
	}()

	svc := deliberation.NewService(deliberation.Config{
		Responders:   deliberation.NewResponderPool(registry, llmClient, cfg.LLM.Timeout()),
		Synthesizer:  deliberation.NewSynthesizer(registry, llmClient),
		Scorer:       engagement.NewScorer(),
		Ledger:       ledger,
		Sessions:     sessions,
		Memory:       participantMemory,
		Store:        store,
		Observations: observe.NewEnqueuer(queue),
		Archive:      rounds,
		AuditCap:     auditCap,
	})

	processor := observe.NewProcessor(registry, llmClient, participantMemory, ledger, queue,
		observe.WithWorkerCount(cfg.Observe.Workers),
	)
	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("观察处理器异常退出: %v", err)
		}
	}()

	disburser := economy.NewDisburser(sessions, registry, payments, participantMemory, store, auditCap)

	server := api.NewServer(cfg.Server.Address, svc, disburser, sessions, registry, payments, rounds)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "redis":
		return redisstore.NewStore(redisstore.Config{
			Address:  cfg.Storage.Addr,
			Password: cfg.Storage.Password,
			DB:       cfg.Storage.DB,
		})
	default:
		return nil, fmt.Errorf("未知的存储驱动: %s", cfg.Storage.Driver)
	}
}

func createPaymentClient(ctx context.Context, cfg *config.Config) (payment.Client, func(), error) {
	switch cfg.Payment.Driver {
	case "", "memory":
		return payment.NewMemoryClient(), func() {}, nil
	case "lnbits":
		client, err := lnbits.NewClient(lnbits.Config{
			URL:      cfg.Payment.LNbits.URL,
			AdminKey: cfg.Payment.LNbits.AdminKey,
			Timeout:  time.Duration(cfg.Payment.LNbits.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	case "chain":
		client, err := chain.NewClient(ctx, chain.Config{
			RPCURL:         cfg.Payment.Chain.RPCURL,
			TreasuryKeyHex: cfg.Payment.Chain.TreasuryKeyHex,
			ChainID:        cfg.Payment.Chain.ChainID,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("未知的支付驱动: %s", cfg.Payment.Driver)
	}
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	hosts := cfg.LLM.Hosts
	if len(hosts) == 0 {
		hosts = []string{""}
	}
	clients := make([]llm.Client, 0, len(hosts))
	for _, host := range hosts {
		client, err := ollama.NewClient(ollama.Config{
			BaseURL: host,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return llm.NewFallback(clients...)
}

func createObserveQueue(cfg *config.Config) (observe.Queue, error) {
	switch cfg.Observe.Driver {
	case "", "memory":
		return observe.NewMemoryQueue(1024), nil
	case "redis":
		return observe.NewRedisQueue(observe.RedisQueueConfig{
			Address:  cfg.Observe.RedisAddr,
			Password: cfg.Storage.Password,
			DB:       cfg.Storage.DB,
			Queue:    cfg.Observe.QueueName,
		})
	case "rabbitmq":
		return observe.NewRabbitMQQueue(observe.RabbitMQConfig{
			URL:     cfg.Observe.AMQPURL,
			Queue:   cfg.Observe.QueueName,
			Durable: true,
		})
	default:
		return nil, fmt.Errorf("未知的观察队列驱动: %s", cfg.Observe.Driver)
	}
}

func createArchive(cfg *config.Config) (archive.Repository, error) {
	switch cfg.Archive.Driver {
	case "", "memory":
		return archive.NewMemoryRepository(), nil
	case "mysql":
		return archive.NewMySQLRepository(cfg.Archive.DSN)
	default:
		return nil, fmt.Errorf("未知的归档驱动: %s", cfg.Archive.Driver)
	}
}
