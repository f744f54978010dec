package actor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "Pantheon-Lattice/internal/errors"
)

// TreasuryID 是国库身份的固定标识，结算与记账均以它为出账方。
const TreasuryID = "treasury"

// Actor 描述一个议事人格。Prompt 是其人格系统提示词，
// Lens 是生成观察时的关注视角，Address 是其在支付系统中的地址。
type Actor struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Prompt  string `yaml:"prompt"`
	Lens    string `yaml:"lens"`
	Address string `yaml:"address"`
}

// Definitions 对应 configs/actors.yaml 的文件结构。
type Definitions struct {
	Actors   []Actor `yaml:"actors"`
	Treasury Actor   `yaml:"treasury"`
}

// ErrActorUnknown 表示调用方传入了未配置的 actor id。
// 这是配置或调用方错误，必须显式上抛，不允许静默降级。
var ErrActorUnknown = xerrors.New(xerrors.CodeActorUnknown, "actor not configured")

// Registry 保存全部已配置的人格，顺序与定义文件一致。
type Registry struct {
	ordered  []Actor
	byID     map[string]Actor
	treasury Actor
}

// LoadDefinitions 解析 YAML 人格定义文件。
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return Definitions{}, xerrors.New(xerrors.CodeInvalidArgument, "人格定义文件路径不能为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("读取人格定义失败: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("解析人格定义失败: %w", err)
	}
	return defs, nil
}

// NewRegistry 根据定义构造注册表。国库身份始终存在；
// 未提供时使用内置的默认国库。
func NewRegistry(defs Definitions) (*Registry, error) {
	if len(defs.Actors) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "至少需要配置一个人格")
	}

	byID := make(map[string]Actor, len(defs.Actors)+1)
	ordered := make([]Actor, 0, len(defs.Actors))
	for _, a := range defs.Actors {
		id := strings.TrimSpace(strings.ToLower(a.ID))
		if id == "" {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "人格 id 不能为空")
		}
		if id == TreasuryID {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "treasury 是保留 id，不能用于人格")
		}
		if _, dup := byID[id]; dup {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("人格 id 重复: %s", id))
		}
		a.ID = id
		byID[id] = a
		ordered = append(ordered, a)
	}

	treasury := defs.Treasury
	treasury.ID = TreasuryID
	if treasury.Name == "" {
		treasury.Name = "Treasury"
	}
	byID[TreasuryID] = treasury

	return &Registry{ordered: ordered, byID: byID, treasury: treasury}, nil
}

// Get 返回指定 id 的 actor。未配置的 id 返回 ErrActorUnknown。
func (r *Registry) Get(id string) (Actor, error) {
	if r == nil {
		return Actor{}, xerrors.New(xerrors.CodeInitializationFailure, "actor 注册表未初始化")
	}
	a, ok := r.byID[strings.TrimSpace(strings.ToLower(id))]
	if !ok {
		return Actor{}, ErrActorUnknown
	}
	return a, nil
}

// Contains 判断 id 是否为已配置的 actor（含国库）。
func (r *Registry) Contains(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byID[strings.TrimSpace(strings.ToLower(id))]
	return ok
}

// List 按配置顺序返回全部人格（不含国库）。
func (r *Registry) List() []Actor {
	if r == nil {
		return nil
	}
	out := make([]Actor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// IDs 按配置顺序返回人格 id 列表（不含国库）。
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.ordered))
	for _, a := range r.ordered {
		ids = append(ids, a.ID)
	}
	return ids
}

// Treasury 返回国库身份。
func (r *Registry) Treasury() Actor {
	if r == nil {
		return Actor{ID: TreasuryID, Name: "Treasury"}
	}
	return r.treasury
}

// Len 返回人格数量（不含国库）。
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ordered)
}
