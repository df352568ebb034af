package wasm_test

import (
	"errors"
	"testing"

	werr "github.com/streamwasm/streamwasm/errors"
	"github.com/streamwasm/streamwasm/wasm"
)

func TestValidate_Valid(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{Params: nil, Results: nil},
		},
		Funcs:    []uint32{0, 1},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.KindFunc, Idx: 0},
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
		},
	}

	if err := m.Validate(); err != nil {
		t.Errorf("valid module failed validation: %v", err)
	}
}

func TestValidate_InvalidFunctionTypeIndex(t *testing.T) {
	m := &wasm.Module{
		Funcs: []uint32{5},
	}

	err := m.Validate()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindInvalidTypeIndex {
		t.Fatalf("got %v, want InvalidTypeIndex", err)
	}
}

func TestValidate_InvalidExportIndex(t *testing.T) {
	m := &wasm.Module{
		Exports: []wasm.Export{{Name: "f", Kind: wasm.KindFunc, Idx: 0}},
	}

	err := m.Validate()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindInvalidFunctionIndex {
		t.Fatalf("got %v, want InvalidFunctionIndex", err)
	}
}

func TestValidate_DuplicateExportName(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0, 0},
		Exports: []wasm.Export{
			{Name: "f", Kind: wasm.KindFunc, Idx: 0},
			{Name: "f", Kind: wasm.KindFunc, Idx: 1},
		},
	}

	if err := m.Validate(); err == nil {
		t.Fatal("expected duplicate export name to be rejected")
	}
}

func TestValidate_StartFunctionWrongSignature(t *testing.T) {
	start := uint32(0)
	m := &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Funcs: []uint32{0},
		Start: &start,
	}

	err := m.Validate()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindUnexpectedType {
		t.Fatalf("got %v, want UnexpectedType", err)
	}
}

func TestValidate_DataCountMismatch(t *testing.T) {
	count := uint32(2)
	m := &wasm.Module{
		DataCount: &count,
		Data:      []wasm.DataSegment{{Bytes: []byte{1}}},
	}

	err := m.Validate()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindDataCountMismatch {
		t.Fatalf("got %v, want DataCountMismatch", err)
	}
}

func TestValidate_MemoryLimitsExceedBound(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: wasm.MemoryMaxPages + 1}}},
	}

	err := m.Validate()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindInvalidLimits {
		t.Fatalf("got %v, want InvalidLimits", err)
	}
}

func TestValidate_ElementTableTypeMismatch(t *testing.T) {
	m := &wasm.Module{
		Tables: []wasm.TableType{{ElemType: wasm.ValExternRef, Limits: wasm.Limits{Min: 1}}},
		Elements: []wasm.Element{
			{Mode: wasm.ElemModeActive, ElemType: wasm.ValFuncRef, TableIdx: 0, Offset: []byte{wasm.OpI32Const, 0, wasm.OpEnd}},
		},
	}

	err := m.Validate()
	var e *werr.Error
	if !errors.As(err, &e) || e.Kind != werr.KindTableValueTypeMismatch {
		t.Fatalf("got %v, want TableValueTypeMismatch", err)
	}
}
