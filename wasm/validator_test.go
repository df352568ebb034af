package wasm_test

import (
	"errors"
	"testing"

	werr "github.com/streamwasm/streamwasm/errors"
	"github.com/streamwasm/streamwasm/wasm"
)

func pushBytes(c *wasm.Cursor, b ...byte) { c.Push(b) }

// identityBody encodes `local.get 0 / end` for a function (i32) -> i32.
func TestValidateBody_Identity(t *testing.T) {
	m := &wasm.Module{}
	fn := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}
	v := wasm.NewCodeValidator(m, fn, []wasm.ValType{wasm.ValI32})

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpLocalGet)
	c.Push(encodeULEB(0))
	pushBytes(c, wasm.OpEnd)

	if err := v.ValidateBody(c); err != nil {
		t.Fatalf("ValidateBody: %v", err)
	}
}

func TestValidateBody_TypeMismatch(t *testing.T) {
	m := &wasm.Module{}
	fn := wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpF32Const)
	c.Push([]byte{0, 0, 0, 0})
	pushBytes(c, wasm.OpEnd)

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindUnexpectedType {
		t.Fatalf("got %v, want UnexpectedType", err)
	}
}

func TestValidateBody_HangingElse(t *testing.T) {
	m := &wasm.Module{}
	fn := wasm.FuncType{}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpElse)

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindHangingElse {
		t.Fatalf("got %v, want HangingElse", err)
	}
}

func TestValidateBody_BlockRoundTrip(t *testing.T) {
	m := &wasm.Module{Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}}}
	fn := wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpBlock, 0x7F) // block (result i32)
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(1))
	pushBytes(c, wasm.OpEnd) // closes block, pushes i32
	pushBytes(c, wasm.OpEnd) // closes function

	if err := v.ValidateBody(c); err != nil {
		t.Fatalf("ValidateBody: %v", err)
	}
}

func TestValidateBody_BrUnreachablePolymorphism(t *testing.T) {
	m := &wasm.Module{}
	fn := wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpUnreachable)
	// after unreachable, pops on the empty stack yield Unknown instead of failing
	pushBytes(c, wasm.OpI32Add)
	pushBytes(c, wasm.OpEnd)

	if err := v.ValidateBody(c); err != nil {
		t.Fatalf("ValidateBody: %v", err)
	}
}

func TestValidateBody_StackEmpty(t *testing.T) {
	m := &wasm.Module{}
	fn := wasm.FuncType{}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpDrop)

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindStackEmpty {
		t.Fatalf("got %v, want StackEmpty", err)
	}
}

func TestValidateBody_MemoryInitWithoutDataCount(t *testing.T) {
	m := &wasm.Module{Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}}
	fn := wasm.FuncType{}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(0))
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(0))
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(0))
	pushBytes(c, wasm.OpPrefixMisc, byte(wasm.MiscMemoryInit))
	c.Push(encodeULEB(0)) // dataidx
	c.Push(encodeULEB(0)) // memidx

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindMissingDataCount {
		t.Fatalf("got %v, want MissingDataCount", err)
	}
}

func TestValidateBody_MemoryAlignment(t *testing.T) {
	m := &wasm.Module{Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}}
	fn := wasm.FuncType{}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(0))
	pushBytes(c, wasm.OpI32Load)
	c.Push(encodeULEB(4)) // align: 1<<4 = 16 > 4 bytes
	c.Push(encodeULEB(0))

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindInvalidAlignment {
		t.Fatalf("got %v, want InvalidAlignment", err)
	}
}

func TestValidateBody_CallIndirectNonFuncrefTable(t *testing.T) {
	m := &wasm.Module{
		Types:  []wasm.FuncType{{}},
		Tables: []wasm.TableType{{ElemType: wasm.ValExternRef, Limits: wasm.Limits{Min: 1}}},
	}
	fn := wasm.FuncType{}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(0))
	pushBytes(c, wasm.OpCallIndirect)
	c.Push(encodeULEB(0))
	c.Push(encodeULEB(0))

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindCanOnlyCallFuncref {
		t.Fatalf("got %v, want CanOnlyCallFuncref", err)
	}
}

func TestValidateInitExpr_RejectsNonConstant(t *testing.T) {
	m := &wasm.Module{}
	v := wasm.NewInitExprValidator(m, wasm.ValI32)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpLocalGet)
	c.Push(encodeULEB(0))

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindInvalidInitExprInstruction {
		t.Fatalf("got %v, want InvalidInitExprInstruction", err)
	}
}

func TestValidateInitExpr_I32Const(t *testing.T) {
	m := &wasm.Module{}
	v := wasm.NewInitExprValidator(m, wasm.ValI32)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(7))
	pushBytes(c, wasm.OpEnd)

	if err := v.ValidateBody(c); err != nil {
		t.Fatalf("ValidateBody: %v", err)
	}
}

func TestValidateBody_SelectRejectsReference(t *testing.T) {
	m := &wasm.Module{}
	fn := wasm.FuncType{}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpRefNull, 0x70) // funcref
	pushBytes(c, wasm.OpRefNull, 0x70)
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(1))
	pushBytes(c, wasm.OpSelect)

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindExpectedNonReference {
		t.Fatalf("got %v, want ExpectedNonReference", err)
	}
}

func TestValidateBody_RefFuncLenientByDefault(t *testing.T) {
	m := &wasm.Module{Funcs: []uint32{0, 0}}
	fn := wasm.FuncType{Results: []wasm.ValType{wasm.ValFuncRef}}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpRefFunc)
	c.Push(encodeULEB(1)) // in range, never exported/started/elemented
	pushBytes(c, wasm.OpEnd)

	if err := v.ValidateBody(c); err != nil {
		t.Fatalf("ValidateBody: %v", err)
	}
}

func TestValidateBody_RefFuncStrictRejectsUndeclared(t *testing.T) {
	m := &wasm.Module{Funcs: []uint32{0, 0}, StrictRefFunc: true}
	fn := wasm.FuncType{Results: []wasm.ValType{wasm.ValFuncRef}}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpRefFunc)
	c.Push(encodeULEB(1))
	pushBytes(c, wasm.OpEnd)

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindFuncNotDeclared {
		t.Fatalf("got %v, want FuncNotDeclared", err)
	}
}

func TestValidateBody_BrTableArityMismatch(t *testing.T) {
	m := &wasm.Module{Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}}}
	fn := wasm.FuncType{}
	v := wasm.NewCodeValidator(m, fn, nil)

	c := wasm.NewCursor()
	pushBytes(c, wasm.OpBlock, 0x7F) // outer: result i32
	pushBytes(c, wasm.OpBlock, 0x40) // inner: empty
	pushBytes(c, wasm.OpI32Const)
	c.Push(encodeSLEB(1))
	pushBytes(c, wasm.OpBrTable)
	c.Push(encodeULEB(1)) // one label
	c.Push(encodeULEB(0)) // label 0: inner (empty result)
	c.Push(encodeULEB(1)) // default: outer (i32 result) -- arity mismatch

	err := v.ValidateBody(c)
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindBrTableArityMismatch {
		t.Fatalf("got %v, want BrTableArityMismatch", err)
	}
}
