// Package formats は同梱のすべての形式を登録します
package formats

import (
	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/formats/cronus"
	"github.com/shiroemons/go-arcunpack/pkg/formats/facebook"
	"github.com/shiroemons/go-arcunpack/pkg/formats/gnu"
	"github.com/shiroemons/go-arcunpack/pkg/formats/lz4frame"
	"github.com/shiroemons/go-arcunpack/pkg/formats/microsoft"
	"github.com/shiroemons/go-arcunpack/pkg/formats/playstation"
	"github.com/shiroemons/go-arcunpack/pkg/formats/renpy"
	"github.com/shiroemons/go-arcunpack/pkg/formats/rpgmaker"
	"github.com/shiroemons/go-arcunpack/pkg/formats/touhou"
	"github.com/shiroemons/go-arcunpack/pkg/formats/tukaani"
)

// Register は同梱のすべての形式を r に登録します
func Register(r arc.Registrar) {
	cronus.Register(r)
	facebook.Register(r)
	gnu.Register(r)
	lz4frame.Register(r)
	microsoft.Register(r)
	playstation.Register(r)
	renpy.Register(r)
	rpgmaker.Register(r)
	touhou.Register(r)
	tukaani.Register(r)
}

// NewRegistry は同梱のすべての形式を登録した Registry を返します
func NewRegistry() *arc.Registry {
	return arc.BuildRegistry(Register)
}
