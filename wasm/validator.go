package wasm

import (
	werr "github.com/streamwasm/streamwasm/errors"
)

// StackEntry is one slot of the validator's operand-type stack. Unknown
// represents a value whose type is polymorphic because it sits above an
// unreachable-transition instruction (unreachable, br, br_table, return);
// it satisfies every type constraint until the frame pops below its floor.
type StackEntry struct {
	Known bool
	Type  ValType
}

var unknownEntry = StackEntry{}

func knownEntry(t ValType) StackEntry { return StackEntry{Known: true, Type: t} }

// IsReference reports whether the entry is, or stands in for, a reference
// type.
func (e StackEntry) IsReference() bool { return !e.Known || e.Type.IsReference() }

// IsNumeric reports whether the entry is, or stands in for, a numeric type.
func (e StackEntry) IsNumeric() bool { return !e.Known || e.Type.IsNumeric() }

// Frame control-kind tags.
const (
	FrameBlock byte = iota
	FrameLoop
	FrameIf
	FrameElse
	FrameFunction
)

// Frame is one entry of the validator's control stack.
type Frame struct {
	Type        FuncType
	Kind        byte
	InitHeight  int
	Unreachable bool
}

// labelTypes returns the types a branch into this frame must carry: a
// loop's parameters (branching re-enters it), any other kind's results
// (branching exits it).
func (f Frame) labelTypes() []ValType {
	if f.Kind == FrameLoop {
		return f.Type.Params
	}
	return f.Type.Results
}

// CodeValidator is an abstract interpreter validating one function body, or
// one constant init expression, against a module's index spaces.
type CodeValidator struct {
	module       *Module
	locals       []ValType
	stack        []StackEntry
	frames       []Frame
	initExprMode bool
}

// NewCodeValidator creates a validator for a function body. locals is the
// function's full local index space: declared parameters followed by the
// body's own local declarations.
func NewCodeValidator(m *Module, fn FuncType, locals []ValType) *CodeValidator {
	return &CodeValidator{
		module: m,
		locals: locals,
		frames: []Frame{{Type: fn, Kind: FrameFunction, InitHeight: 0}},
	}
}

// NewInitExprValidator creates a validator for a constant expression
// (global initializer, element/data offset, element item) that must
// produce a single value of the given type.
func NewInitExprValidator(m *Module, result ValType) *CodeValidator {
	return &CodeValidator{
		module:       m,
		initExprMode: true,
		frames:       []Frame{{Type: FuncType{Results: []ValType{result}}, Kind: FrameFunction, InitHeight: 0}},
	}
}

func (v *CodeValidator) curFrame() *Frame {
	return &v.frames[len(v.frames)-1]
}

func (v *CodeValidator) pop() (StackEntry, error) {
	f := v.curFrame()
	if len(v.stack) == f.InitHeight {
		if f.Unreachable {
			return unknownEntry, nil
		}
		return StackEntry{}, werr.StackEmpty()
	}
	e := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return e, nil
}

func (v *CodeValidator) popExpect(t ValType) error {
	e, err := v.pop()
	if err != nil {
		return err
	}
	if e.Known && e.Type != t {
		return werr.UnexpectedType(t, e.Type)
	}
	return nil
}

func (v *CodeValidator) popExpectAll(types []ValType) error {
	for i := len(types) - 1; i >= 0; i-- {
		if err := v.popExpect(types[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *CodeValidator) push(e StackEntry)    { v.stack = append(v.stack, e) }
func (v *CodeValidator) pushKnown(t ValType)  { v.push(knownEntry(t)) }
func (v *CodeValidator) pushAll(ts []ValType) {
	for _, t := range ts {
		v.pushKnown(t)
	}
}

// enterUnreachable truncates the current frame's stack to its floor and
// marks it unreachable; further pops return Unknown until the frame exits.
func (v *CodeValidator) enterUnreachable() {
	f := v.curFrame()
	v.stack = v.stack[:f.InitHeight]
	f.Unreachable = true
}

// enter opens a block/loop/if frame: pops the block type's parameters,
// pushes a new frame, and makes those parameters visible again inside it.
func (v *CodeValidator) enter(kind byte, ft FuncType) error {
	if err := v.popExpectAll(ft.Params); err != nil {
		return err
	}
	v.frames = append(v.frames, Frame{Type: ft, Kind: kind, InitHeight: len(v.stack)})
	v.pushAll(ft.Params)
	return nil
}

// exit closes the current frame: pops its results, requires the stack has
// returned exactly to the frame's floor, and pops the frame itself.
func (v *CodeValidator) exit() error {
	f := *v.curFrame()
	if err := v.popExpectAll(f.Type.Results); err != nil {
		return err
	}
	if len(v.stack) != f.InitHeight {
		return werr.StackHeightMismatch(f.InitHeight, len(v.stack))
	}
	v.frames = v.frames[:len(v.frames)-1]
	return nil
}

func (v *CodeValidator) frameAt(label uint32) (*Frame, error) {
	if int(label) >= len(v.frames) {
		return nil, werr.InvalidLabelIndex(label, len(v.frames))
	}
	return &v.frames[len(v.frames)-1-int(label)], nil
}

var constantOpcodes = map[byte]bool{
	OpI32Const: true, OpI64Const: true, OpF32Const: true, OpF64Const: true,
	OpGlobalGet: true, OpRefNull: true, OpRefFunc: true,
}

// ValidateBody runs the abstract interpreter over a function or init-
// expression body until its frame stack empties (the outermost `end`).
func (v *CodeValidator) ValidateBody(c *Cursor) error {
	for {
		if len(v.frames) == 0 {
			return nil
		}
		op, err := DecodeOpcode(c)
		if err != nil {
			return err
		}
		if v.initExprMode && op.Byte != OpEnd && !constantOpcodes[op.Byte] {
			return werr.InvalidInitExprInstruction(op.Byte)
		}
		if err := v.step(c, op); err != nil {
			return err
		}
	}
}

func (v *CodeValidator) step(c *Cursor, op Opcode) error {
	if op.Byte == OpPrefixMisc {
		return v.stepMisc(c, op.Misc)
	}

	switch op.Byte {
	case OpUnreachable:
		v.enterUnreachable()
		return nil
	case OpNop:
		return nil

	case OpBlock, OpLoop:
		bt, err := DecodeBlockType(c)
		if err != nil {
			return err
		}
		kind := byte(FrameBlock)
		if op.Byte == OpLoop {
			kind = FrameLoop
		}
		fn, ok := bt.Resolve(v.module.Types)
		if !ok {
			return werr.OutOfBounds(werr.KindInvalidTypeIndex, []string{"block"}, int(bt.TypeIdx), len(v.module.Types))
		}
		return v.enter(kind, fn)
	case OpIf:
		bt, err := DecodeBlockType(c)
		if err != nil {
			return err
		}
		if err := v.popExpect(ValI32); err != nil {
			return err
		}
		fn, ok := bt.Resolve(v.module.Types)
		if !ok {
			return werr.OutOfBounds(werr.KindInvalidTypeIndex, []string{"if"}, int(bt.TypeIdx), len(v.module.Types))
		}
		return v.enter(FrameIf, fn)
	case OpElse:
		return v.stepElse()
	case OpEnd:
		return v.stepEnd()

	case OpBr:
		label, err := c.ReadULEB32()
		if err != nil {
			return err
		}
		f, err := v.frameAt(label)
		if err != nil {
			return err
		}
		if err := v.popExpectAll(f.labelTypes()); err != nil {
			return err
		}
		v.enterUnreachable()
		return nil
	case OpBrIf:
		label, err := c.ReadULEB32()
		if err != nil {
			return err
		}
		f, err := v.frameAt(label)
		if err != nil {
			return err
		}
		if err := v.popExpect(ValI32); err != nil {
			return err
		}
		types := f.labelTypes()
		if err := v.popExpectAll(types); err != nil {
			return err
		}
		v.pushAll(types)
		return nil
	case OpBrTable:
		return v.stepBrTable(c)
	case OpReturn:
		fn := v.frames[0].Type
		if err := v.popExpectAll(fn.Results); err != nil {
			return err
		}
		v.enterUnreachable()
		return nil

	case OpCall:
		return v.stepCall(c)
	case OpCallIndirect:
		return v.stepCallIndirect(c)

	case OpRefNull:
		t, err := DecodeValType(c)
		if err != nil {
			return err
		}
		if !t.IsReference() {
			return werr.Validate(werr.KindExpectedReferenceType, "ref.null requires a reference type")
		}
		v.pushKnown(t)
		return nil
	case OpRefIsNull:
		e, err := v.pop()
		if err != nil {
			return err
		}
		if e.Known && !e.Type.IsReference() {
			return werr.Validate(werr.KindExpectedReference, "ref.is_null requires a reference value")
		}
		v.pushKnown(ValI32)
		return nil
	case OpRefFunc:
		idx, err := c.ReadULEB32()
		if err != nil {
			return err
		}
		if idx >= v.module.TotalFuncs() {
			return werr.OutOfBounds(werr.KindInvalidFunctionIndex, []string{"ref.func"}, int(idx), int(v.module.TotalFuncs()))
		}
		if v.module.StrictRefFunc && !v.initExprMode && !v.module.IsDeclaredFunc(idx) {
			return werr.FuncNotDeclared(idx)
		}
		v.pushKnown(ValFuncRef)
		return nil

	case OpDrop:
		_, err := v.pop()
		return err
	case OpSelect:
		return v.stepSelect()
	case OpSelectType:
		return v.stepSelectTyped(c)

	case OpLocalGet, OpLocalSet, OpLocalTee:
		return v.stepLocal(c, op.Byte)
	case OpGlobalGet, OpGlobalSet:
		return v.stepGlobal(c, op.Byte)
	case OpTableGet, OpTableSet:
		return v.stepTableGetSet(c, op.Byte)

	case OpI32Const:
		_, err := c.ReadSLEB32()
		if err != nil {
			return err
		}
		v.pushKnown(ValI32)
		return nil
	case OpI64Const:
		_, err := c.ReadSLEB64()
		if err != nil {
			return err
		}
		v.pushKnown(ValI64)
		return nil
	case OpF32Const:
		_, err := c.ReadFloat32()
		if err != nil {
			return err
		}
		v.pushKnown(ValF32)
		return nil
	case OpF64Const:
		_, err := c.ReadFloat64()
		if err != nil {
			return err
		}
		v.pushKnown(ValF64)
		return nil

	case OpMemorySize:
		return v.stepMemoryIndexed(c, 0, ValI32)
	case OpMemoryGrow:
		return v.stepMemoryIndexed(c, 1, ValI32)
	}

	if loadStoreWidth(op.Byte) != 0 {
		return v.stepMemAccess(c, op.Byte)
	}

	if pops, push, ok := numericSignature(op.Byte); ok {
		if err := v.popExpectAll(pops); err != nil {
			return err
		}
		v.pushKnown(push)
		return nil
	}

	return werr.UnknownOpcode(op.Byte, nil)
}

func (v *CodeValidator) stepElse() error {
	f := v.curFrame()
	if f.Kind != FrameIf {
		return werr.HangingElse()
	}
	ft := f.Type
	floor := f.InitHeight
	if err := v.popExpectAll(ft.Results); err != nil {
		return err
	}
	if len(v.stack) != floor {
		return werr.StackHeightMismatch(floor, len(v.stack))
	}
	v.frames = v.frames[:len(v.frames)-1]
	v.frames = append(v.frames, Frame{Type: ft, Kind: FrameElse, InitHeight: floor})
	v.pushAll(ft.Params)
	return nil
}

// stepEnd closes the current frame. An else-less if ends up here with
// Kind still FrameIf; it is popped and its results pushed exactly like a
// block, which does not enforce that params == results for that case.
func (v *CodeValidator) stepEnd() error {
	f := *v.curFrame()
	if err := v.exit(); err != nil {
		return err
	}
	if len(v.frames) > 0 {
		v.pushAll(f.Type.Results)
	}
	return nil
}

func (v *CodeValidator) stepBrTable(c *Cursor) error {
	bt, err := DecodeBrTable(c)
	if err != nil {
		return err
	}
	if err := v.popExpect(ValI32); err != nil {
		return err
	}
	def, err := v.frameAt(bt.Default)
	if err != nil {
		return err
	}
	defTypes := def.labelTypes()
	for _, label := range bt.Labels {
		f, err := v.frameAt(label)
		if err != nil {
			return err
		}
		types := f.labelTypes()
		if len(types) != len(defTypes) {
			return werr.BrTableArityMismatch()
		}
		if err := v.popExpectAll(types); err != nil {
			return err
		}
		v.pushAll(types)
	}
	if err := v.popExpectAll(defTypes); err != nil {
		return err
	}
	v.enterUnreachable()
	return nil
}

func (v *CodeValidator) stepCall(c *Cursor) error {
	idx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	ft := v.module.FuncType(idx)
	if ft == nil {
		return werr.OutOfBounds(werr.KindInvalidFunctionIndex, []string{"call"}, int(idx), int(v.module.TotalFuncs()))
	}
	if err := v.popExpectAll(ft.Params); err != nil {
		return err
	}
	v.pushAll(ft.Results)
	return nil
}

func (v *CodeValidator) stepCallIndirect(c *Cursor) error {
	typeIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	tableIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	tbl, ok := v.module.TableAt(tableIdx)
	if !ok {
		return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"call_indirect"}, int(tableIdx), int(v.module.TotalTables()))
	}
	if tbl.ElemType != ValFuncRef {
		return werr.Validate(werr.KindCanOnlyCallFuncref, "call_indirect requires a funcref table")
	}
	if int(typeIdx) >= len(v.module.Types) {
		return werr.OutOfBounds(werr.KindInvalidTypeIndex, []string{"call_indirect"}, int(typeIdx), len(v.module.Types))
	}
	ft := v.module.Types[typeIdx]
	if err := v.popExpect(ValI32); err != nil {
		return err
	}
	if err := v.popExpectAll(ft.Params); err != nil {
		return err
	}
	v.pushAll(ft.Results)
	return nil
}

func (v *CodeValidator) stepSelect() error {
	if err := v.popExpect(ValI32); err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}
	b, err := v.pop()
	if err != nil {
		return err
	}
	if a.Known && !a.IsNumeric() && !a.Type.IsVector() {
		return werr.Validate(werr.KindExpectedNonReference, "select requires a numeric or v128 operand")
	}
	if b.Known && !b.IsNumeric() && !b.Type.IsVector() {
		return werr.Validate(werr.KindExpectedNonReference, "select requires a numeric or v128 operand")
	}
	switch {
	case a.Known && b.Known:
		if a.Type != b.Type {
			return werr.UnexpectedType(a.Type, b.Type)
		}
		v.push(a)
	case a.Known:
		v.push(a)
	default:
		v.push(b)
	}
	return nil
}

func (v *CodeValidator) stepSelectTyped(c *Cursor) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	if count != 1 {
		return werr.Validate(werr.KindInvalidSelectType, "select t* requires exactly one type")
	}
	t, err := DecodeValType(c)
	if err != nil {
		return err
	}
	if err := v.popExpect(ValI32); err != nil {
		return err
	}
	if err := v.popExpect(t); err != nil {
		return err
	}
	if err := v.popExpect(t); err != nil {
		return err
	}
	v.pushKnown(t)
	return nil
}

func (v *CodeValidator) stepLocal(c *Cursor, op byte) error {
	idx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	if int(idx) >= len(v.locals) {
		return werr.OutOfBounds(werr.KindInvalidLocalIndex, []string{"local"}, int(idx), len(v.locals))
	}
	t := v.locals[idx]
	switch op {
	case OpLocalGet:
		v.pushKnown(t)
	case OpLocalSet:
		return v.popExpect(t)
	case OpLocalTee:
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.pushKnown(t)
	}
	return nil
}

func (v *CodeValidator) stepGlobal(c *Cursor, op byte) error {
	idx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	gt, ok := v.module.GlobalAt(idx)
	if !ok {
		return werr.OutOfBounds(werr.KindInvalidGlobalIndex, []string{"global"}, int(idx), int(v.module.TotalGlobals()))
	}
	if op == OpGlobalGet {
		if v.initExprMode {
			if gt.Mutable || idx >= v.module.ImportedGlobals() {
				return werr.Validate(werr.KindInvalidGlobalGet, "init expression global.get requires an immutable imported global")
			}
		}
		v.pushKnown(gt.ValType)
		return nil
	}
	if !gt.Mutable {
		return werr.Validate(werr.KindInvalidGlobalSet, "global.set requires a mutable global")
	}
	return v.popExpect(gt.ValType)
}

func (v *CodeValidator) stepTableGetSet(c *Cursor, op byte) error {
	idx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	tbl, ok := v.module.TableAt(idx)
	if !ok {
		return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"table"}, int(idx), int(v.module.TotalTables()))
	}
	if op == OpTableGet {
		if err := v.popExpect(ValI32); err != nil {
			return err
		}
		v.pushKnown(tbl.ElemType)
		return nil
	}
	if err := v.popExpect(tbl.ElemType); err != nil {
		return err
	}
	return v.popExpect(ValI32)
}

func (v *CodeValidator) stepMemoryIndexed(c *Cursor, extraArity int, pushType ValType) error {
	memIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	if memIdx >= v.module.TotalMemories() {
		return werr.OutOfBounds(werr.KindInvalidMemoryIndex, []string{"memory"}, int(memIdx), int(v.module.TotalMemories()))
	}
	if extraArity > 0 {
		if err := v.popExpect(ValI32); err != nil {
			return err
		}
	}
	v.pushKnown(pushType)
	return nil
}

func (v *CodeValidator) stepMemAccess(c *Cursor, op byte) error {
	m, err := DecodeMemArg(c)
	if err != nil {
		return err
	}
	if m.MemIdx >= v.module.TotalMemories() {
		return werr.OutOfBounds(werr.KindInvalidMemoryIndex, []string{"memarg"}, int(m.MemIdx), int(v.module.TotalMemories()))
	}
	size := loadStoreWidth(op)
	if m.Align > 3 || (1<<m.Align) > size {
		return werr.Validate(werr.KindInvalidAlignment, "alignment exceeds access size")
	}
	t := loadStoreValType(op)
	if isStoreOp(op) {
		if err := v.popExpect(t); err != nil {
			return err
		}
		return v.popExpect(ValI32)
	}
	if err := v.popExpect(ValI32); err != nil {
		return err
	}
	v.pushKnown(t)
	return nil
}

func isStoreOp(op byte) bool {
	switch op {
	case OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		return true
	}
	return false
}

func loadStoreValType(op byte) ValType {
	switch op {
	case OpI32Load, OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI32Store, OpI32Store8, OpI32Store16:
		return ValI32
	case OpI64Load, OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI64Store, OpI64Store8, OpI64Store16, OpI64Store32:
		return ValI64
	case OpF32Load, OpF32Store:
		return ValF32
	case OpF64Load, OpF64Store:
		return ValF64
	}
	return 0
}

func (v *CodeValidator) stepMisc(c *Cursor, sub uint32) error {
	switch sub {
	case MiscI32TruncSatF32S, MiscI32TruncSatF32U:
		return v.convert(ValF32, ValI32)
	case MiscI32TruncSatF64S, MiscI32TruncSatF64U:
		return v.convert(ValF64, ValI32)
	case MiscI64TruncSatF32S, MiscI64TruncSatF32U:
		return v.convert(ValF32, ValI64)
	case MiscI64TruncSatF64S, MiscI64TruncSatF64U:
		return v.convert(ValF64, ValI64)
	case MiscMemoryInit:
		return v.stepMemoryInit(c)
	case MiscDataDrop:
		return v.stepDataDrop(c)
	case MiscMemoryCopy:
		return v.stepMemoryCopy(c)
	case MiscMemoryFill:
		return v.stepMemoryFill(c)
	case MiscTableInit:
		return v.stepTableInit(c)
	case MiscElemDrop:
		return v.stepElemDrop(c)
	case MiscTableCopy:
		return v.stepTableCopy(c)
	case MiscTableGrow:
		return v.stepTableGrow(c)
	case MiscTableSize:
		return v.stepTableSize(c)
	case MiscTableFill:
		return v.stepTableFill(c)
	}
	return werr.UnknownOpcode(OpPrefixMisc, &sub)
}

func (v *CodeValidator) convert(from, to ValType) error {
	if err := v.popExpect(from); err != nil {
		return err
	}
	v.pushKnown(to)
	return nil
}

func (v *CodeValidator) checkDataCount(dataIdx uint32) error {
	if v.module.DataCount == nil {
		return werr.MissingDataCount()
	}
	if dataIdx >= *v.module.DataCount {
		return werr.OutOfBounds(werr.KindInvalidDataIndex, []string{"data"}, int(dataIdx), int(*v.module.DataCount))
	}
	return nil
}

func (v *CodeValidator) stepMemoryInit(c *Cursor) error {
	dataIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	memIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	if err := v.checkDataCount(dataIdx); err != nil {
		return err
	}
	if memIdx >= v.module.TotalMemories() {
		return werr.OutOfBounds(werr.KindInvalidMemoryIndex, []string{"memory.init"}, int(memIdx), int(v.module.TotalMemories()))
	}
	return v.popExpectAll([]ValType{ValI32, ValI32, ValI32})
}

func (v *CodeValidator) stepDataDrop(c *Cursor) error {
	dataIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	return v.checkDataCount(dataIdx)
}

func (v *CodeValidator) stepMemoryCopy(c *Cursor) error {
	dst, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	src, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	total := v.module.TotalMemories()
	if dst >= total {
		return werr.OutOfBounds(werr.KindInvalidMemoryIndex, []string{"memory.copy"}, int(dst), int(total))
	}
	if src >= total {
		return werr.OutOfBounds(werr.KindInvalidMemoryIndex, []string{"memory.copy"}, int(src), int(total))
	}
	return v.popExpectAll([]ValType{ValI32, ValI32, ValI32})
}

func (v *CodeValidator) stepMemoryFill(c *Cursor) error {
	memIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	if memIdx >= v.module.TotalMemories() {
		return werr.OutOfBounds(werr.KindInvalidMemoryIndex, []string{"memory.fill"}, int(memIdx), int(v.module.TotalMemories()))
	}
	return v.popExpectAll([]ValType{ValI32, ValI32, ValI32})
}

func (v *CodeValidator) elementAt(elemIdx uint32) (*Element, error) {
	if int(elemIdx) >= len(v.module.Elements) {
		return nil, werr.OutOfBounds(werr.KindInvalidElementIndex, []string{"element"}, int(elemIdx), len(v.module.Elements))
	}
	return &v.module.Elements[elemIdx], nil
}

func (v *CodeValidator) stepTableInit(c *Cursor) error {
	elemIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	tableIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	elem, err := v.elementAt(elemIdx)
	if err != nil {
		return err
	}
	tbl, ok := v.module.TableAt(tableIdx)
	if !ok {
		return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"table.init"}, int(tableIdx), int(v.module.TotalTables()))
	}
	if elem.ElemType != tbl.ElemType {
		return werr.Validate(werr.KindTableValueTypeMismatch, "table.init element type mismatch")
	}
	return v.popExpectAll([]ValType{ValI32, ValI32, ValI32})
}

func (v *CodeValidator) stepElemDrop(c *Cursor) error {
	elemIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	_, err = v.elementAt(elemIdx)
	return err
}

func (v *CodeValidator) stepTableCopy(c *Cursor) error {
	dst, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	src, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	dstTbl, ok := v.module.TableAt(dst)
	if !ok {
		return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"table.copy"}, int(dst), int(v.module.TotalTables()))
	}
	srcTbl, ok := v.module.TableAt(src)
	if !ok {
		return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"table.copy"}, int(src), int(v.module.TotalTables()))
	}
	if dstTbl.ElemType != srcTbl.ElemType {
		return werr.Validate(werr.KindTableValueTypeMismatch, "table.copy element type mismatch")
	}
	return v.popExpectAll([]ValType{ValI32, ValI32, ValI32})
}

func (v *CodeValidator) stepTableGrow(c *Cursor) error {
	tableIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	tbl, ok := v.module.TableAt(tableIdx)
	if !ok {
		return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"table.grow"}, int(tableIdx), int(v.module.TotalTables()))
	}
	if err := v.popExpect(ValI32); err != nil {
		return err
	}
	if err := v.popExpect(tbl.ElemType); err != nil {
		return err
	}
	v.pushKnown(ValI32)
	return nil
}

func (v *CodeValidator) stepTableSize(c *Cursor) error {
	tableIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	if _, ok := v.module.TableAt(tableIdx); !ok {
		return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"table.size"}, int(tableIdx), int(v.module.TotalTables()))
	}
	v.pushKnown(ValI32)
	return nil
}

func (v *CodeValidator) stepTableFill(c *Cursor) error {
	tableIdx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	tbl, ok := v.module.TableAt(tableIdx)
	if !ok {
		return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"table.fill"}, int(tableIdx), int(v.module.TotalTables()))
	}
	if err := v.popExpect(ValI32); err != nil {
		return err
	}
	if err := v.popExpect(tbl.ElemType); err != nil {
		return err
	}
	return v.popExpect(ValI32)
}

// numericSignature returns the fixed pop/push signature of a numeric,
// comparison, or conversion opcode that needs no extra immediate.
func numericSignature(op byte) (pops []ValType, push ValType, ok bool) {
	if sig, found := fixedSignatures[op]; found {
		return sig.pops, sig.push, true
	}
	return nil, 0, false
}

type signature struct {
	pops []ValType
	push ValType
}

var (
	i32i32I32 = signature{[]ValType{ValI32, ValI32}, ValI32}
	i64i64I64 = signature{[]ValType{ValI64, ValI64}, ValI64}
	f32f32F32 = signature{[]ValType{ValF32, ValF32}, ValF32}
	f64f64F64 = signature{[]ValType{ValF64, ValF64}, ValF64}
	i64i64I32 = signature{[]ValType{ValI64, ValI64}, ValI32}
	f32f32I32 = signature{[]ValType{ValF32, ValF32}, ValI32}
	f64f64I32 = signature{[]ValType{ValF64, ValF64}, ValI32}
	i32I32    = signature{[]ValType{ValI32}, ValI32}
	i64I64    = signature{[]ValType{ValI64}, ValI64}
	f32F32    = signature{[]ValType{ValF32}, ValF32}
	f64F64    = signature{[]ValType{ValF64}, ValF64}
)

var fixedSignatures = map[byte]signature{
	OpI32Eqz: i32I32,
	OpI32Eq: i32i32I32, OpI32Ne: i32i32I32, OpI32LtS: i32i32I32, OpI32LtU: i32i32I32,
	OpI32GtS: i32i32I32, OpI32GtU: i32i32I32, OpI32LeS: i32i32I32, OpI32LeU: i32i32I32,
	OpI32GeS: i32i32I32, OpI32GeU: i32i32I32,

	OpI64Eqz: {[]ValType{ValI64}, ValI32},
	OpI64Eq: i64i64I32, OpI64Ne: i64i64I32, OpI64LtS: i64i64I32, OpI64LtU: i64i64I32,
	OpI64GtS: i64i64I32, OpI64GtU: i64i64I32, OpI64LeS: i64i64I32, OpI64LeU: i64i64I32,
	OpI64GeS: i64i64I32, OpI64GeU: i64i64I32,

	OpF32Eq: f32f32I32, OpF32Ne: f32f32I32, OpF32Lt: f32f32I32, OpF32Gt: f32f32I32,
	OpF32Le: f32f32I32, OpF32Ge: f32f32I32,
	OpF64Eq: f64f64I32, OpF64Ne: f64f64I32, OpF64Lt: f64f64I32, OpF64Gt: f64f64I32,
	OpF64Le: f64f64I32, OpF64Ge: f64f64I32,

	OpI32Clz: i32I32, OpI32Ctz: i32I32, OpI32Popcnt: i32I32,
	OpI32Add: i32i32I32, OpI32Sub: i32i32I32, OpI32Mul: i32i32I32,
	OpI32DivS: i32i32I32, OpI32DivU: i32i32I32, OpI32RemS: i32i32I32, OpI32RemU: i32i32I32,
	OpI32And: i32i32I32, OpI32Or: i32i32I32, OpI32Xor: i32i32I32,
	OpI32Shl: i32i32I32, OpI32ShrS: i32i32I32, OpI32ShrU: i32i32I32,
	OpI32Rotl: i32i32I32, OpI32Rotr: i32i32I32,

	OpI64Clz: i64I64, OpI64Ctz: i64I64, OpI64Popcnt: i64I64,
	OpI64Add: i64i64I64, OpI64Sub: i64i64I64, OpI64Mul: i64i64I64,
	OpI64DivS: i64i64I64, OpI64DivU: i64i64I64, OpI64RemS: i64i64I64, OpI64RemU: i64i64I64,
	OpI64And: i64i64I64, OpI64Or: i64i64I64, OpI64Xor: i64i64I64,
	OpI64Shl: i64i64I64, OpI64ShrS: i64i64I64, OpI64ShrU: i64i64I64,
	OpI64Rotl: i64i64I64, OpI64Rotr: i64i64I64,

	OpF32Abs: f32F32, OpF32Neg: f32F32, OpF32Ceil: f32F32, OpF32Floor: f32F32,
	OpF32Trunc: f32F32, OpF32Nearest: f32F32, OpF32Sqrt: f32F32,
	OpF32Add: f32f32F32, OpF32Sub: f32f32F32, OpF32Mul: f32f32F32, OpF32Div: f32f32F32,
	OpF32Min: f32f32F32, OpF32Max: f32f32F32, OpF32Copysign: f32f32F32,

	OpF64Abs: f64F64, OpF64Neg: f64F64, OpF64Ceil: f64F64, OpF64Floor: f64F64,
	OpF64Trunc: f64F64, OpF64Nearest: f64F64, OpF64Sqrt: f64F64,
	OpF64Add: f64f64F64, OpF64Sub: f64f64F64, OpF64Mul: f64f64F64, OpF64Div: f64f64F64,
	OpF64Min: f64f64F64, OpF64Max: f64f64F64, OpF64Copysign: f64f64F64,

	OpI32WrapI64: {[]ValType{ValI64}, ValI32},
	OpI32TruncF32S: {[]ValType{ValF32}, ValI32}, OpI32TruncF32U: {[]ValType{ValF32}, ValI32},
	OpI32TruncF64S: {[]ValType{ValF64}, ValI32}, OpI32TruncF64U: {[]ValType{ValF64}, ValI32},
	OpI64ExtendI32S: {[]ValType{ValI32}, ValI64}, OpI64ExtendI32U: {[]ValType{ValI32}, ValI64},
	OpI64TruncF32S: {[]ValType{ValF32}, ValI64}, OpI64TruncF32U: {[]ValType{ValF32}, ValI64},
	OpI64TruncF64S: {[]ValType{ValF64}, ValI64}, OpI64TruncF64U: {[]ValType{ValF64}, ValI64},
	OpF32ConvertI32S: {[]ValType{ValI32}, ValF32}, OpF32ConvertI32U: {[]ValType{ValI32}, ValF32},
	OpF32ConvertI64S: {[]ValType{ValI64}, ValF32}, OpF32ConvertI64U: {[]ValType{ValI64}, ValF32},
	OpF32DemoteF64: {[]ValType{ValF64}, ValF32},
	OpF64ConvertI32S: {[]ValType{ValI32}, ValF64}, OpF64ConvertI32U: {[]ValType{ValI32}, ValF64},
	OpF64ConvertI64S: {[]ValType{ValI64}, ValF64}, OpF64ConvertI64U: {[]ValType{ValI64}, ValF64},
	OpF64PromoteF32: {[]ValType{ValF32}, ValF64},
	OpI32ReinterpretF32: {[]ValType{ValF32}, ValI32}, OpI64ReinterpretF64: {[]ValType{ValF64}, ValI64},
	OpF32ReinterpretI32: {[]ValType{ValI32}, ValF32}, OpF64ReinterpretI64: {[]ValType{ValI64}, ValF64},

	OpI32Extend8S: i32I32, OpI32Extend16S: i32I32,
	OpI64Extend8S: i64I64, OpI64Extend16S: i64I64, OpI64Extend32S: i64I64,
}
