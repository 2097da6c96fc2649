package arc

import (
	"fmt"
	"slices"
)

// Plugin は名前付きの暗号化パラメータなどの候補です
type Plugin[T any] struct {
	ID    string
	Name  string
	Value T
}

// PluginSet は順序付きの候補の集合です
type PluginSet[T any] struct {
	plugins []Plugin[T]
}

// Add は候補を末尾に追加します
func (s *PluginSet[T]) Add(id, name string, value T) {
	s.plugins = append(s.plugins, Plugin[T]{ID: id, Name: name, Value: value})
}

// All は追加順の候補一覧を返します
func (s *PluginSet[T]) All() []Plugin[T] {
	return slices.Clone(s.plugins)
}

// Get は id の候補を返します
func (s *PluginSet[T]) Get(id string) (Plugin[T], bool) {
	for _, p := range s.plugins {
		if p.ID == id {
			return p, true
		}
	}
	return Plugin[T]{}, false
}

// Names は追加順の候補IDの一覧を返します
func (s *PluginSet[T]) Names() []string {
	ids := make([]string, len(s.plugins))
	for i, p := range s.plugins {
		ids[i] = p.ID
	}
	return ids
}

// Only は id の候補だけを含む集合を返します。id が空の場合は s をそのまま返します。
func (s *PluginSet[T]) Only(id string) (*PluginSet[T], error) {
	if id == "" {
		return s, nil
	}
	p, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: plugin %q (available: %v)", ErrNotSupported, id, s.Names())
	}
	return &PluginSet[T]{plugins: []Plugin[T]{p}}, nil
}

// GuessPlugin は候補を順に試し、検証に成功した最初の候補とそのディレクトリを返します。
//
// read が成功し、ディレクトリが空でなく、最後のエントリの Offset+Size が sourceLen と一致した場合に
// 候補を採用します。read のエラーは不採用として扱い、次の候補に進みます。
// どの候補も採用されなかった場合は ErrUnknownEncryptionScheme を返します。
func GuessPlugin[T any](plugins *PluginSet[T], sourceLen uint64, read func(T) (*Meta, error), logger Logger) (Plugin[T], *Meta, error) {
	logger = OrNop(logger)

	for _, p := range plugins.plugins {
		meta, err := read(p.Value)
		if err != nil {
			logger.Printf("Trying plugin %s: %v\n", p.ID, err)
			continue
		}
		last := meta.Last()
		if last == nil {
			logger.Printf("Trying plugin %s: empty directory\n", p.ID)
			continue
		}
		if last.End() != sourceLen {
			logger.Printf("Trying plugin %s: last entry ends at %d, want %d\n", p.ID, last.End(), sourceLen)
			continue
		}
		logger.Printf("Trying plugin %s: accepted\n", p.ID)
		return p, meta, nil
	}
	return Plugin[T]{}, nil, ErrUnknownEncryptionScheme
}
