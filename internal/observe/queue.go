package observe

import "context"

// Handler 处理队列中的一条观察工作项（JSON 编码）。
type Handler func(ctx context.Context, payload string) error

// Producer 负责向队列投递工作项。
type Producer interface {
	Publish(ctx context.Context, payload string) error
	Close() error
}

// Consumer 负责从队列中消费工作项。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}
