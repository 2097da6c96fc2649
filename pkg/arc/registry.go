package arc

import (
	"fmt"
	"slices"
)

// Factory はデコーダを生成する関数です
type Factory func() Decoder

// Registrar は形式の登録先です。BuildRegistry の登録処理の中でのみ使えます。
type Registrar interface {
	// Register は形式IDとデコーダの生成関数を登録します。IDの重複は panic します。
	Register(id string, factory Factory)
}

// Registry は形式IDからデコーダを生成するテーブルです。
// 構築後は変更されないため、ロックなしで並行に参照できます。
type Registry struct {
	ids       []string
	factories map[string]Factory
}

type registryBuilder struct {
	r *Registry
}

func (b *registryBuilder) Register(id string, factory Factory) {
	if id == "" {
		panic("arc: empty format id")
	}
	if factory == nil {
		panic(fmt.Sprintf("arc: nil factory for %q", id))
	}
	if _, dup := b.r.factories[id]; dup {
		panic(fmt.Sprintf("arc: format %q registered twice", id))
	}
	b.r.ids = append(b.r.ids, id)
	b.r.factories[id] = factory
}

// BuildRegistry は passes を順に実行して Registry を構築します。
// 起動時に一度だけ呼び出し、以降は返された Registry を参照で渡します。
func BuildRegistry(passes ...func(Registrar)) *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	b := &registryBuilder{r: r}
	for _, pass := range passes {
		pass(b)
	}
	return r
}

// Create は id のデコーダを生成します
func (r *Registry) Create(id string) (Decoder, error) {
	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, id)
	}
	return factory(), nil
}

// Has は id が登録されているかを返します
func (r *Registry) Has(id string) bool {
	_, ok := r.factories[id]
	return ok
}

// Formats は登録順の形式ID一覧を返します
func (r *Registry) Formats() []string {
	return slices.Clone(r.ids)
}
