package llm

import (
	"context"
	"log/slog"

	xerrors "Pantheon-Lattice/internal/errors"
	"Pantheon-Lattice/pkg/logger"
)

// Request 描述一次推理调用。System 是人格系统提示词，
// Prompt 是本轮输入，Temperature 与 MaxTokens 为生成参数。
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client 定义调用大模型的统一接口。返回值为模型的原始文本输出。
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Fallback 按优先级串联多个后端。前面的后端失败时依次尝试后面的，
// 全部失败才向调用方报错。
type Fallback struct {
	clients []Client
	log     *slog.Logger
}

// NewFallback 根据优先级顺序构造回退客户端。
func NewFallback(clients ...Client) (*Fallback, error) {
	if len(clients) == 0 {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "至少需要一个推理后端")
	}
	return &Fallback{clients: clients, log: logger.Named("llm")}, nil
}

// Generate 依次尝试各后端，返回第一个成功的结果。
func (f *Fallback) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for idx, client := range f.clients {
		out, err := client.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		f.log.Warn("推理后端调用失败，尝试回退", "rank", idx, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", xerrors.Wrap(xerrors.CodeGenerationFailure, lastErr, "全部推理后端均不可用")
}
