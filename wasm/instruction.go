package wasm

import (
	werr "github.com/streamwasm/streamwasm/errors"
)

// Opcode is a decoded instruction opcode: either a single primary byte, or
// the OpPrefixMisc byte together with its uLEB128 sub-opcode. Both forms
// resolve to this one tagged value so the validator dispatches on a single
// type.
type Opcode struct {
	Byte byte
	Misc uint32 // meaningful only when Byte == OpPrefixMisc
}

// MemArg is the immediate operand of a memory load/store instruction:
// alignment exponent, memory index, and byte offset.
type MemArg struct {
	Align  uint32
	MemIdx uint32
	Offset uint32
}

// BrTable is the immediate operand of the br_table instruction.
type BrTable struct {
	Labels  []uint32
	Default uint32
}

var primaryOpcodes = map[byte]bool{
	OpUnreachable: true, OpNop: true, OpBlock: true, OpLoop: true, OpIf: true,
	OpElse: true, OpEnd: true, OpBr: true, OpBrIf: true, OpBrTable: true,
	OpReturn: true, OpCall: true, OpCallIndirect: true,
	OpRefNull: true, OpRefIsNull: true, OpRefFunc: true,
	OpDrop: true, OpSelect: true, OpSelectType: true,
	OpLocalGet: true, OpLocalSet: true, OpLocalTee: true,
	OpGlobalGet: true, OpGlobalSet: true,
	OpTableGet: true, OpTableSet: true,
	OpI32Load: true, OpI64Load: true, OpF32Load: true, OpF64Load: true,
	OpI32Load8S: true, OpI32Load8U: true, OpI32Load16S: true, OpI32Load16U: true,
	OpI64Load8S: true, OpI64Load8U: true, OpI64Load16S: true, OpI64Load16U: true,
	OpI64Load32S: true, OpI64Load32U: true,
	OpI32Store: true, OpI64Store: true, OpF32Store: true, OpF64Store: true,
	OpI32Store8: true, OpI32Store16: true, OpI64Store8: true, OpI64Store16: true, OpI64Store32: true,
	OpMemorySize: true, OpMemoryGrow: true,
	OpI32Const: true, OpI64Const: true, OpF32Const: true, OpF64Const: true,
	OpI32Eqz: true, OpI32Eq: true, OpI32Ne: true, OpI32LtS: true, OpI32LtU: true,
	OpI32GtS: true, OpI32GtU: true, OpI32LeS: true, OpI32LeU: true, OpI32GeS: true, OpI32GeU: true,
	OpI64Eqz: true, OpI64Eq: true, OpI64Ne: true, OpI64LtS: true, OpI64LtU: true,
	OpI64GtS: true, OpI64GtU: true, OpI64LeS: true, OpI64LeU: true, OpI64GeS: true, OpI64GeU: true,
	OpF32Eq: true, OpF32Ne: true, OpF32Lt: true, OpF32Gt: true, OpF32Le: true, OpF32Ge: true,
	OpF64Eq: true, OpF64Ne: true, OpF64Lt: true, OpF64Gt: true, OpF64Le: true, OpF64Ge: true,
	OpI32Clz: true, OpI32Ctz: true, OpI32Popcnt: true, OpI32Add: true, OpI32Sub: true, OpI32Mul: true,
	OpI32DivS: true, OpI32DivU: true, OpI32RemS: true, OpI32RemU: true,
	OpI32And: true, OpI32Or: true, OpI32Xor: true, OpI32Shl: true, OpI32ShrS: true, OpI32ShrU: true,
	OpI32Rotl: true, OpI32Rotr: true,
	OpI64Clz: true, OpI64Ctz: true, OpI64Popcnt: true, OpI64Add: true, OpI64Sub: true, OpI64Mul: true,
	OpI64DivS: true, OpI64DivU: true, OpI64RemS: true, OpI64RemU: true,
	OpI64And: true, OpI64Or: true, OpI64Xor: true, OpI64Shl: true, OpI64ShrS: true, OpI64ShrU: true,
	OpI64Rotl: true, OpI64Rotr: true,
	OpF32Abs: true, OpF32Neg: true, OpF32Ceil: true, OpF32Floor: true, OpF32Trunc: true,
	OpF32Nearest: true, OpF32Sqrt: true, OpF32Add: true, OpF32Sub: true, OpF32Mul: true, OpF32Div: true,
	OpF32Min: true, OpF32Max: true, OpF32Copysign: true,
	OpF64Abs: true, OpF64Neg: true, OpF64Ceil: true, OpF64Floor: true, OpF64Trunc: true,
	OpF64Nearest: true, OpF64Sqrt: true, OpF64Add: true, OpF64Sub: true, OpF64Mul: true, OpF64Div: true,
	OpF64Min: true, OpF64Max: true, OpF64Copysign: true,
	OpI32WrapI64: true, OpI32TruncF32S: true, OpI32TruncF32U: true, OpI32TruncF64S: true, OpI32TruncF64U: true,
	OpI64ExtendI32S: true, OpI64ExtendI32U: true,
	OpI64TruncF32S: true, OpI64TruncF32U: true, OpI64TruncF64S: true, OpI64TruncF64U: true,
	OpF32ConvertI32S: true, OpF32ConvertI32U: true, OpF32ConvertI64S: true, OpF32ConvertI64U: true, OpF32DemoteF64: true,
	OpF64ConvertI32S: true, OpF64ConvertI32U: true, OpF64ConvertI64S: true, OpF64ConvertI64U: true, OpF64PromoteF32: true,
	OpI32ReinterpretF32: true, OpI64ReinterpretF64: true, OpF32ReinterpretI32: true, OpF64ReinterpretI64: true,
	OpI32Extend8S: true, OpI32Extend16S: true, OpI64Extend8S: true, OpI64Extend16S: true, OpI64Extend32S: true,
}

var miscOpcodes = map[uint32]bool{
	MiscI32TruncSatF32S: true, MiscI32TruncSatF32U: true, MiscI32TruncSatF64S: true, MiscI32TruncSatF64U: true,
	MiscI64TruncSatF32S: true, MiscI64TruncSatF32U: true, MiscI64TruncSatF64S: true, MiscI64TruncSatF64U: true,
	MiscMemoryInit: true, MiscDataDrop: true, MiscMemoryCopy: true, MiscMemoryFill: true,
	MiscTableInit: true, MiscElemDrop: true, MiscTableCopy: true, MiscTableGrow: true,
	MiscTableSize: true, MiscTableFill: true,
}

// DecodeOpcode reads one instruction opcode, following the OpPrefixMisc byte
// with its uLEB128 sub-opcode when present.
func DecodeOpcode(c *Cursor) (Opcode, error) {
	pos := c.Pos()
	b, err := c.ReadByte()
	if err != nil {
		return Opcode{}, err
	}

	if b == OpPrefixMisc {
		sub, err := c.ReadULEB32()
		if err != nil {
			c.SeekTo(pos)
			return Opcode{}, err
		}
		if !miscOpcodes[sub] {
			return Opcode{}, werr.UnknownOpcode(b, &sub)
		}
		return Opcode{Byte: b, Misc: sub}, nil
	}

	if !primaryOpcodes[b] {
		return Opcode{}, werr.UnknownOpcode(b, nil)
	}
	return Opcode{Byte: b}, nil
}

// DecodeValType reads a single value-type byte.
func DecodeValType(c *Cursor) (ValType, error) {
	pos := c.Pos()
	b, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	switch ValType(b) {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExternRef:
		return ValType(b), nil
	}
	c.SeekTo(pos)
	return 0, werr.Parse(werr.KindInvalidValueTypeTag, "")
}

// DecodeBlockType reads a block type: the empty tag, a single value type, or
// a signed LEB128 type index.
func DecodeBlockType(c *Cursor) (BlockType, error) {
	pos := c.Pos()
	b, err := c.ReadByte()
	if err != nil {
		return BlockType{}, err
	}
	if b == blockTypeEmptyByte {
		return BlockType{Kind: BlockTypeEmpty}, nil
	}
	switch ValType(b) {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExternRef:
		return BlockType{Kind: BlockTypeValue, Value: ValType(b)}, nil
	}
	c.SeekTo(pos)
	idx, err := c.ReadSLEB32()
	if err != nil {
		return BlockType{}, err
	}
	if idx < 0 {
		return BlockType{}, werr.Validate(werr.KindInvalidTypeIndex, "negative type index")
	}
	return BlockType{Kind: BlockTypeIndex, TypeIdx: uint32(idx)}, nil
}

// DecodeMemArg reads a memory-argument tuple, honoring the multi-memory
// indexing bit in the alignment byte.
func DecodeMemArg(c *Cursor) (MemArg, error) {
	pos := c.Pos()
	flags, err := c.ReadULEB32()
	if err != nil {
		return MemArg{}, err
	}
	var memIdx uint32
	if flags&memArgMultiMemoryFlag != 0 {
		flags &^= memArgMultiMemoryFlag
		memIdx, err = c.ReadULEB32()
		if err != nil {
			c.SeekTo(pos)
			return MemArg{}, err
		}
	}
	offset, err := c.ReadULEB32()
	if err != nil {
		c.SeekTo(pos)
		return MemArg{}, err
	}
	return MemArg{Align: flags, MemIdx: memIdx, Offset: offset}, nil
}

// DecodeBrTable reads a br_table immediate: a vector of label indices and a
// final default label.
func DecodeBrTable(c *Cursor) (BrTable, error) {
	pos := c.Pos()
	count, err := c.ReadULEB32()
	if err != nil {
		return BrTable{}, err
	}
	labels := make([]uint32, count)
	for i := range labels {
		l, err := c.ReadULEB32()
		if err != nil {
			c.SeekTo(pos)
			return BrTable{}, err
		}
		labels[i] = l
	}
	def, err := c.ReadULEB32()
	if err != nil {
		c.SeekTo(pos)
		return BrTable{}, err
	}
	return BrTable{Labels: labels, Default: def}, nil
}

// loadStoreWidth returns the byte width of the value a narrow load/store
// opcode accesses; it overrides the value type's own width for forms like
// i32.load8_u.
func loadStoreWidth(op byte) int {
	switch op {
	case OpI32Load8S, OpI32Load8U, OpI64Load8S, OpI64Load8U, OpI32Store8, OpI64Store8:
		return 1
	case OpI32Load16S, OpI32Load16U, OpI64Load16S, OpI64Load16U, OpI32Store16, OpI64Store16:
		return 2
	case OpI32Load, OpF32Load, OpI32Store, OpF32Store, OpI64Load32S, OpI64Load32U, OpI64Store32:
		return 4
	case OpI64Load, OpF64Load, OpI64Store, OpF64Store:
		return 8
	default:
		return 0
	}
}
