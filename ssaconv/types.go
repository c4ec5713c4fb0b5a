package ssaconv

import (
	"go/types"

	"github.com/BarrensZeppelin/funcptr/ir"
)

// PointerLike reports whether values of type t may hold an address.
func PointerLike(t types.Type) bool {
	switch t := t.(type) {
	case *types.Pointer,
		*types.Map,
		*types.Chan,
		*types.Slice,
		*types.Interface,
		*types.Signature:
		return true
	case *types.Named:
		return PointerLike(t.Underlying())
	case *types.TypeParam:
		return true
	default:
		return false
	}
}

func kindOf(t types.Type) ir.TypeKind {
	switch {
	case isSignature(t):
		return ir.Func
	case PointerLike(t):
		return ir.Pointer
	default:
		return ir.Scalar
	}
}

func isSignature(t types.Type) bool {
	_, ok := t.Underlying().(*types.Signature)
	return ok
}

// typeOf abstracts t to the shape the analysis cares about. Pointers and
// slices remember whether their elements are pointer-like, so that loads
// through them are tracked.
func typeOf(t types.Type) ir.Type {
	switch t := t.Underlying().(type) {
	case *types.Signature:
		return ir.FuncType
	case *types.Pointer:
		return ir.PointerTo(kindOf(t.Elem()))
	case *types.Slice:
		return ir.PointerTo(kindOf(t.Elem()))
	case *types.Map, *types.Chan, *types.Interface:
		return ir.PointerTo(ir.Scalar)
	default:
		return ir.ScalarType
	}
}

func resultType(sig *types.Signature) ir.Type {
	if sig.Results().Len() != 1 {
		return ir.ScalarType
	}
	return typeOf(sig.Results().At(0).Type())
}
