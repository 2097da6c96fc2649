package touhou

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

// variantPicker は作品ごとのパラメータの候補から使うものを選びます。
// 固定されていなければファイル名から推定し、推定できなければ fallback を使います。
type variantPicker[T any] struct {
	set      *arc.PluginSet[T]
	pinned   string
	infer    func(name string) string
	fallback string
}

func (p *variantPicker[T]) names() []string {
	return p.set.Names()
}

func (p *variantPicker[T]) pin(id string) error {
	if _, err := p.set.Only(id); err != nil {
		return err
	}
	p.pinned = id
	return nil
}

func (p *variantPicker[T]) pick(format string, f *arc.File, logger arc.Logger) (T, error) {
	id := p.pinned
	if id == "" {
		id = p.infer(f.Name)
		if id == "" {
			id = p.fallback
		}
		logger.Printf("Using %s parameters %s for %s\n", format, id, f.Name)
	}
	v, ok := p.set.Get(id)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: variant %q", arc.ErrNotSupported, id)
	}
	return v.Value, nil
}

// titleDigits はファイル名 "thNN..." の数字部分を返します（th095.dat なら "095"）
func titleDigits(name string) string {
	base := strings.ToLower(filepath.Base(filepath.ToSlash(name)))
	if !strings.HasPrefix(base, "th") {
		return ""
	}
	digits := base[2:]
	if i := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = digits[:i]
	}
	return digits
}
