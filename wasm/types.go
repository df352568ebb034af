package wasm

// ValType represents a WebAssembly value type. See constants.go for ValI32,
// ValI64, ValF32, ValF64, ValV128, ValFuncRef, ValExternRef.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExternRef:
		return "externref"
	default:
		return "unknown"
	}
}

// IsReference reports whether v is funcref or externref.
func (v ValType) IsReference() bool {
	return v == ValFuncRef || v == ValExternRef
}

// IsNumeric reports whether v is neither a reference type nor v128.
func (v ValType) IsNumeric() bool {
	return !v.IsReference() && v != ValV128
}

// IsVector reports whether v is v128.
func (v ValType) IsVector() bool {
	return v == ValV128
}

// BitWidth returns the value's bit width, or 0 for reference types.
func (v ValType) BitWidth() int {
	switch v {
	case ValI32, ValF32:
		return 32
	case ValI64, ValF64:
		return 64
	case ValV128:
		return 128
	default:
		return 0
	}
}

// FuncType is a function signature: ordered parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// BlockType is a block's type, one of three encodings on the wire.
type BlockType struct {
	// Kind discriminates the three encodings: BlockTypeEmpty, BlockTypeValue,
	// BlockTypeIndex.
	Kind    byte
	Value   ValType
	TypeIdx uint32
}

const (
	BlockTypeEmpty byte = iota
	BlockTypeValue
	BlockTypeIndex
)

// Resolve returns the FuncType a block type denotes, given the module's type
// table. ok is false when Kind is BlockTypeIndex and TypeIdx is out of
// range; callers must treat that as an invalid module rather than silently
// using an empty signature.
func (b BlockType) Resolve(types []FuncType) (ft FuncType, ok bool) {
	switch b.Kind {
	case BlockTypeEmpty:
		return FuncType{}, true
	case BlockTypeValue:
		return FuncType{Results: []ValType{b.Value}}, true
	default:
		if int(b.TypeIdx) < len(types) {
			return types[b.TypeIdx], true
		}
		return FuncType{}, false
	}
}

// Limits describes the size bound of a table or memory.
type Limits struct {
	Min uint32
	Max *uint32
}

// TableType describes a table: its element type and size limits.
type TableType struct {
	ElemType ValType
	Limits   Limits
}

// MemoryType describes a linear memory's size limits, in page units.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a module-defined global: its type and constant init expression.
type Global struct {
	Type GlobalType
	Init []byte // raw init-expression bytes, sliced exactly by the validator
}

// Import kinds, shared with Export.Kind.
const (
	KindFunc byte = iota
	KindTable
	KindMemory
	KindGlobal
)

// ImportDesc describes an imported entity's type.
type ImportDesc struct {
	Kind    byte
	TypeIdx uint32 // KindFunc
	Table   TableType
	Memory  MemoryType
	Global  GlobalType
}

// Import is a single entry of the import section.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// Export is a single entry of the export section.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element segment modes.
const (
	ElemModeActive byte = iota
	ElemModePassive
	ElemModeDeclarative
)

// Element represents an element segment: its element type, init
// expressions (one per table slot), and placement mode.
type Element struct {
	Mode      byte
	ElemType  ValType
	TableIdx  uint32 // meaningful when Mode == ElemModeActive
	Offset    []byte // meaningful when Mode == ElemModeActive
	InitExprs [][]byte
}

// DataSegment represents a data segment: raw bytes and, for active
// segments, the target memory and offset expression.
type DataSegment struct {
	Bytes     []byte
	IsActive  bool
	MemIdx    uint32
	OffsetExp []byte
}

// LocalEntry is one run of same-typed locals declared by a function body.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// FuncBody is a code-section entry: the function's local declarations and
// raw instruction bytes (including the trailing end opcode).
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte
}

// CustomSection holds a named custom section's raw payload, collected but
// never validated.
type CustomSection struct {
	Name string
	Data []byte
}

// ImportTotals caches the per-kind import counts, computed once after the
// Import section finishes parsing. Every later index-space computation
// reads this instead of rescanning Imports.
type ImportTotals struct {
	Funcs    uint32
	Tables   uint32
	Memories uint32
	Globals  uint32
	computed bool
}

// Module is the in-memory representation of a decoded WebAssembly module.
// It is filled in section order by the streaming parser and becomes
// immutable once Finish succeeds.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type indices of locally declared functions
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Start    *uint32
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	// DataCount holds the count from the Data Count section (id 12), if
	// present. Required for memory.init/data.drop to validate.
	DataCount *uint32

	CustomSections []CustomSection

	// StrictRefFunc gates ref.func's declaredness check: when true, the
	// target must be exported, be the start function, or appear in some
	// element segment, matching the reference-types proposal's stricter
	// rule instead of a plain index-range check.
	StrictRefFunc bool

	importTotals  ImportTotals
	declaredFuncs map[uint32]bool
}

// computeDeclaredFuncs scans Exports, Start, and Elements once — called
// when the parser reaches the Code section's size, since by then every one
// of those (Export id 7, Start id 8, Element id 9) has already parsed.
func (m *Module) computeDeclaredFuncs() {
	d := make(map[uint32]bool)
	for _, exp := range m.Exports {
		if exp.Kind == KindFunc {
			d[exp.Idx] = true
		}
	}
	if m.Start != nil {
		d[*m.Start] = true
	}
	for _, el := range m.Elements {
		if el.ElemType != ValFuncRef {
			continue
		}
		for _, expr := range el.InitExprs {
			if idx, ok := refFuncTarget(expr); ok {
				d[idx] = true
			}
		}
	}
	m.declaredFuncs = d
}

// refFuncTarget extracts the function index from a `ref.func idx; end`
// init-expression, as synthesized for the element segment shorthand
// encodings or written directly in the expression-carrying ones.
func refFuncTarget(expr []byte) (uint32, bool) {
	if len(expr) < 2 || expr[0] != OpRefFunc {
		return 0, false
	}
	c := NewCursor()
	c.Push(expr[1:])
	idx, err := c.ReadULEB32()
	if err != nil {
		return 0, false
	}
	return idx, true
}

// IsDeclaredFunc reports whether funcIdx is a declared function: exported,
// the start function, or referenced by some element segment.
func (m *Module) IsDeclaredFunc(funcIdx uint32) bool {
	return m.declaredFuncs[funcIdx]
}

// computeImportTotals scans Imports once and caches the per-kind counts.
// The streaming parser calls this exactly once, immediately after the
// Import section finishes, establishing the publish barrier every later
// reader relies on.
func (m *Module) computeImportTotals() {
	var t ImportTotals
	for _, imp := range m.Imports {
		switch imp.Desc.Kind {
		case KindFunc:
			t.Funcs++
		case KindTable:
			t.Tables++
		case KindMemory:
			t.Memories++
		case KindGlobal:
			t.Globals++
		}
	}
	t.computed = true
	m.importTotals = t
}

// ImportedFuncs returns the number of imported functions.
func (m *Module) ImportedFuncs() uint32 { return m.importTotals.Funcs }

// ImportedTables returns the number of imported tables.
func (m *Module) ImportedTables() uint32 { return m.importTotals.Tables }

// ImportedMemories returns the number of imported memories.
func (m *Module) ImportedMemories() uint32 { return m.importTotals.Memories }

// ImportedGlobals returns the number of imported globals.
func (m *Module) ImportedGlobals() uint32 { return m.importTotals.Globals }

// TotalFuncs returns the number of functions, imported plus locally declared.
func (m *Module) TotalFuncs() uint32 { return m.importTotals.Funcs + uint32(len(m.Funcs)) }

// TotalTables returns the number of tables, imported plus locally declared.
func (m *Module) TotalTables() uint32 { return m.importTotals.Tables + uint32(len(m.Tables)) }

// TotalMemories returns the number of memories, imported plus locally declared.
func (m *Module) TotalMemories() uint32 { return m.importTotals.Memories + uint32(len(m.Memories)) }

// TotalGlobals returns the number of globals, imported plus locally declared.
func (m *Module) TotalGlobals() uint32 { return m.importTotals.Globals + uint32(len(m.Globals)) }

// GetImportedFunc locates the index-th imported function's type index, by
// iterating Imports in declaration order.
func (m *Module) GetImportedFunc(index uint32) (uint32, bool) {
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if index == 0 {
			return imp.Desc.TypeIdx, true
		}
		index--
	}
	return 0, false
}

// GetImportedTable locates the index-th imported table, by iterating
// Imports in declaration order.
func (m *Module) GetImportedTable(index uint32) (TableType, bool) {
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindTable {
			continue
		}
		if index == 0 {
			return imp.Desc.Table, true
		}
		index--
	}
	return TableType{}, false
}

// GetImportedMemory locates the index-th imported memory, by iterating
// Imports in declaration order.
func (m *Module) GetImportedMemory(index uint32) (MemoryType, bool) {
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindMemory {
			continue
		}
		if index == 0 {
			return imp.Desc.Memory, true
		}
		index--
	}
	return MemoryType{}, false
}

// GetImportedGlobal locates the index-th imported global, by iterating
// Imports in declaration order.
func (m *Module) GetImportedGlobal(index uint32) (GlobalType, bool) {
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindGlobal {
			continue
		}
		if index == 0 {
			return imp.Desc.Global, true
		}
		index--
	}
	return GlobalType{}, false
}

// FuncType returns the type of the funcIdx-th function in function index
// space (imports numbered first), or nil if funcIdx is out of range.
func (m *Module) FuncType(funcIdx uint32) *FuncType {
	imported := m.ImportedFuncs()
	if funcIdx < imported {
		typeIdx, ok := m.GetImportedFunc(funcIdx)
		if !ok {
			return nil
		}
		return m.typeByIdx(typeIdx)
	}
	localIdx := funcIdx - imported
	if int(localIdx) >= len(m.Funcs) {
		return nil
	}
	return m.typeByIdx(m.Funcs[localIdx])
}

func (m *Module) typeByIdx(typeIdx uint32) *FuncType {
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// TableAt returns the tableIdx-th table's type in table index space, or
// false if out of range.
func (m *Module) TableAt(tableIdx uint32) (TableType, bool) {
	imported := m.ImportedTables()
	if tableIdx < imported {
		return m.GetImportedTable(tableIdx)
	}
	localIdx := tableIdx - imported
	if int(localIdx) >= len(m.Tables) {
		return TableType{}, false
	}
	return m.Tables[localIdx], true
}

// MemoryAt returns the memIdx-th memory's type in memory index space, or
// false if out of range.
func (m *Module) MemoryAt(memIdx uint32) (MemoryType, bool) {
	imported := m.ImportedMemories()
	if memIdx < imported {
		return m.GetImportedMemory(memIdx)
	}
	localIdx := memIdx - imported
	if int(localIdx) >= len(m.Memories) {
		return MemoryType{}, false
	}
	return m.Memories[localIdx], true
}

// GlobalAt returns the globalIdx-th global's type in global index space, or
// false if out of range.
func (m *Module) GlobalAt(globalIdx uint32) (GlobalType, bool) {
	imported := m.ImportedGlobals()
	if globalIdx < imported {
		return m.GetImportedGlobal(globalIdx)
	}
	localIdx := globalIdx - imported
	if int(localIdx) >= len(m.Globals) {
		return GlobalType{}, false
	}
	return m.Globals[localIdx].Type, true
}
