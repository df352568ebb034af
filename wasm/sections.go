package wasm

import (
	"unicode/utf8"

	werr "github.com/streamwasm/streamwasm/errors"
)

// readName reads a length-prefixed UTF-8 string.
func readName(c *Cursor) (string, error) {
	n, err := c.ReadULEB32()
	if err != nil {
		return "", err
	}
	b, err := c.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", werr.InvalidUTF8(nil, b)
	}
	return string(b), nil
}

func readLimits(c *Cursor) (Limits, error) {
	flag, err := c.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	min, err := c.ReadULEB32()
	if err != nil {
		return Limits{}, err
	}
	switch flag {
	case LimitsNoMax:
		return Limits{Min: min}, nil
	case LimitsHasMax:
		max, err := c.ReadULEB32()
		if err != nil {
			return Limits{}, err
		}
		if max < min {
			return Limits{}, werr.InvalidLimits("max less than min")
		}
		return Limits{Min: min, Max: &max}, nil
	default:
		return Limits{}, werr.Parse(werr.KindInvalidLimitsFlag, "")
	}
}

func readTableType(c *Cursor) (TableType, error) {
	elem, err := DecodeValType(c)
	if err != nil {
		return TableType{}, err
	}
	if !elem.IsReference() {
		return TableType{}, werr.Parse(werr.KindExpectedReferenceType, "table element type must be a reference type")
	}
	limits, err := readLimits(c)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elem, Limits: limits}, nil
}

func readMemoryType(c *Cursor) (MemoryType, error) {
	limits, err := readLimits(c)
	if err != nil {
		return MemoryType{}, err
	}
	return MemoryType{Limits: limits}, nil
}

func readGlobalType(c *Cursor) (GlobalType, error) {
	vt, err := DecodeValType(c)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := c.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	switch mut {
	case 0x00:
		return GlobalType{ValType: vt, Mutable: false}, nil
	case 0x01:
		return GlobalType{ValType: vt, Mutable: true}, nil
	default:
		return GlobalType{}, werr.Parse(werr.KindInvalidMutabilityFlag, "")
	}
}

// readInitExpr runs the code validator in init-expression mode over c,
// returning the exact bytes it consumed including the trailing end opcode.
func readInitExpr(c *Cursor, m *Module, result ValType) ([]byte, error) {
	start := c.Pos()
	v := NewInitExprValidator(m, result)
	if err := v.ValidateBody(c); err != nil {
		return nil, err
	}
	return c.Slice(start, c.Pos()), nil
}

func parseCustomSection(c *Cursor, m *Module) error {
	name, err := readName(c)
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: c.Rest()})
	// Custom sections are opaque; consume the remainder explicitly.
	if _, err := c.ReadExact(len(c.Rest())); err != nil {
		return err
	}
	return nil
}

func parseTypeSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, count)
	for i := uint32(0); i < count; i++ {
		form, err := c.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return werr.Parse(werr.KindInvalidFunctionTypeTag, "")
		}
		params, err := readValTypeVec(c)
		if err != nil {
			return err
		}
		results, err := readValTypeVec(c)
		if err != nil {
			return err
		}
		m.Types[i] = FuncType{Params: params, Results: results}
	}
	return nil
}

func readValTypeVec(c *Cursor) ([]ValType, error) {
	n, err := c.ReadULEB32()
	if err != nil {
		return nil, err
	}
	out := make([]ValType, n)
	for i := uint32(0); i < n; i++ {
		vt, err := DecodeValType(c)
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

func parseImportSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Imports = make([]Import, count)
	for i := uint32(0); i < count; i++ {
		mod, err := readName(c)
		if err != nil {
			return err
		}
		name, err := readName(c)
		if err != nil {
			return err
		}
		kind, err := c.ReadByte()
		if err != nil {
			return err
		}
		var desc ImportDesc
		desc.Kind = kind
		switch kind {
		case KindFunc:
			desc.TypeIdx, err = c.ReadULEB32()
		case KindTable:
			desc.Table, err = readTableType(c)
		case KindMemory:
			desc.Memory, err = readMemoryType(c)
		case KindGlobal:
			desc.Global, err = readGlobalType(c)
		default:
			return werr.Parse(werr.KindInvalidExternTag, "")
		}
		if err != nil {
			return err
		}
		m.Imports[i] = Import{Module: mod, Name: name, Desc: desc}
	}
	return nil
}

func parseFunctionSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		idx, err := c.ReadULEB32()
		if err != nil {
			return err
		}
		if int(idx) >= len(m.Types) {
			return werr.OutOfBounds(werr.KindInvalidTypeIndex, []string{"function"}, int(idx), len(m.Types))
		}
		m.Funcs[i] = idx
	}
	return nil
}

func parseTableSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Tables = make([]TableType, count)
	for i := uint32(0); i < count; i++ {
		tt, err := readTableType(c)
		if err != nil {
			return err
		}
		m.Tables[i] = tt
	}
	return nil
}

func parseMemorySection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Memories = make([]MemoryType, count)
	for i := uint32(0); i < count; i++ {
		mt, err := readMemoryType(c)
		if err != nil {
			return err
		}
		m.Memories[i] = mt
	}
	return nil
}

func parseGlobalSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Globals = make([]Global, count)
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(c)
		if err != nil {
			return err
		}
		init, err := readInitExpr(c, m, gt.ValType)
		if err != nil {
			return err
		}
		m.Globals[i] = Global{Type: gt, Init: init}
	}
	return nil
}

func parseExportSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Exports = make([]Export, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(c)
		if err != nil {
			return err
		}
		kind, err := c.ReadByte()
		if err != nil {
			return err
		}
		idx, err := c.ReadULEB32()
		if err != nil {
			return err
		}
		m.Exports[i] = Export{Name: name, Kind: kind, Idx: idx}
	}
	return nil
}

func parseStartSection(c *Cursor, m *Module) error {
	idx, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Start = &idx
	return nil
}

// elemKindFuncRef is the single element kind the MVP and bulk-memory
// proposal define: 0x00 always denotes funcref.
const elemKindFuncRef byte = 0x00

func parseElementSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Elements = make([]Element, count)
	for i := uint32(0); i < count; i++ {
		flags, err := c.ReadULEB32()
		if err != nil {
			return err
		}
		el, err := parseOneElement(c, m, flags)
		if err != nil {
			return err
		}
		m.Elements[i] = el
	}
	return nil
}

func parseOneElement(c *Cursor, m *Module, flags uint32) (Element, error) {
	var el Element

	switch flags {
	case 0:
		el.Mode = ElemModeActive
		el.ElemType = ValFuncRef
		off, err := readInitExpr(c, m, ValI32)
		if err != nil {
			return el, err
		}
		el.Offset = off
		idxs, err := readULEBVec(c)
		if err != nil {
			return el, err
		}
		el.InitExprs, err = funcIdxExprs(m, idxs)
		if err != nil {
			return el, err
		}
		return el, nil
	case 1:
		el.Mode = ElemModePassive
		kind, err := c.ReadByte()
		if err != nil {
			return el, err
		}
		if kind != elemKindFuncRef {
			return el, werr.Parse(werr.KindInvalidElementTag, "")
		}
		el.ElemType = ValFuncRef
		idxs, err := readULEBVec(c)
		if err != nil {
			return el, err
		}
		el.InitExprs, err = funcIdxExprs(m, idxs)
		if err != nil {
			return el, err
		}
		return el, nil
	case 2:
		el.Mode = ElemModeActive
		el.ElemType = ValFuncRef
		tableIdx, err := c.ReadULEB32()
		if err != nil {
			return el, err
		}
		el.TableIdx = tableIdx
		off, err := readInitExpr(c, m, ValI32)
		if err != nil {
			return el, err
		}
		el.Offset = off
		kind, err := c.ReadByte()
		if err != nil {
			return el, err
		}
		if kind != elemKindFuncRef {
			return el, werr.Parse(werr.KindInvalidElementTag, "")
		}
		idxs, err := readULEBVec(c)
		if err != nil {
			return el, err
		}
		el.InitExprs, err = funcIdxExprs(m, idxs)
		if err != nil {
			return el, err
		}
		return el, nil
	case 3:
		el.Mode = ElemModeDeclarative
		el.ElemType = ValFuncRef
		kind, err := c.ReadByte()
		if err != nil {
			return el, err
		}
		if kind != elemKindFuncRef {
			return el, werr.Parse(werr.KindInvalidElementTag, "")
		}
		idxs, err := readULEBVec(c)
		if err != nil {
			return el, err
		}
		el.InitExprs, err = funcIdxExprs(m, idxs)
		if err != nil {
			return el, err
		}
		return el, nil
	case 4:
		el.Mode = ElemModeActive
		el.ElemType = ValFuncRef
		off, err := readInitExpr(c, m, ValI32)
		if err != nil {
			return el, err
		}
		el.Offset = off
		return el, readExprItems(c, m, &el)
	case 5:
		el.Mode = ElemModePassive
		vt, err := DecodeValType(c)
		if err != nil {
			return el, err
		}
		el.ElemType = vt
		return el, readExprItems(c, m, &el)
	case 6:
		el.Mode = ElemModeActive
		tableIdx, err := c.ReadULEB32()
		if err != nil {
			return el, err
		}
		el.TableIdx = tableIdx
		off, err := readInitExpr(c, m, ValI32)
		if err != nil {
			return el, err
		}
		el.Offset = off
		vt, err := DecodeValType(c)
		if err != nil {
			return el, err
		}
		el.ElemType = vt
		return el, readExprItems(c, m, &el)
	case 7:
		el.Mode = ElemModeDeclarative
		vt, err := DecodeValType(c)
		if err != nil {
			return el, err
		}
		el.ElemType = vt
		return el, readExprItems(c, m, &el)
	default:
		return el, werr.Parse(werr.KindInvalidElementTag, "")
	}
}

func readULEBVec(c *Cursor) ([]uint32, error) {
	n, err := c.ReadULEB32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		v, err := c.ReadULEB32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readExprItems(c *Cursor, m *Module, el *Element) error {
	n, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	el.InitExprs = make([][]byte, n)
	for i := uint32(0); i < n; i++ {
		expr, err := readInitExpr(c, m, el.ElemType)
		if err != nil {
			return err
		}
		el.InitExprs[i] = expr
	}
	return nil
}

// funcIdxExprs synthesizes a one-instruction `ref.func idx; end` init
// expression per function index, so the shorthand element encodings (MVP
// vectors of function indices) share the same InitExprs representation as
// the expression-carrying encodings. Each index is bounds-checked against
// the module's function index space, matching the check ref.func itself
// gets when it appears in the expression-carrying encodings.
func funcIdxExprs(m *Module, idxs []uint32) ([][]byte, error) {
	out := make([][]byte, len(idxs))
	for i, idx := range idxs {
		if idx >= m.TotalFuncs() {
			return nil, werr.OutOfBounds(werr.KindInvalidFunctionIndex, []string{"element"}, int(idx), int(m.TotalFuncs()))
		}
		b := []byte{OpRefFunc}
		b = appendULEB(b, idx)
		b = append(b, OpEnd)
		out[i] = b
	}
	return out, nil
}

func appendULEB(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func parseDataCountSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.DataCount = &count
	return nil
}

func parseDataSection(c *Cursor, m *Module) error {
	count, err := c.ReadULEB32()
	if err != nil {
		return err
	}
	m.Data = make([]DataSegment, count)
	for i := uint32(0); i < count; i++ {
		flag, err := c.ReadULEB32()
		if err != nil {
			return err
		}
		var seg DataSegment
		switch flag {
		case 0:
			seg.IsActive = true
			off, err := readInitExpr(c, m, ValI32)
			if err != nil {
				return err
			}
			seg.OffsetExp = off
		case 1:
			seg.IsActive = false
		case 2:
			seg.IsActive = true
			memIdx, err := c.ReadULEB32()
			if err != nil {
				return err
			}
			seg.MemIdx = memIdx
			off, err := readInitExpr(c, m, ValI32)
			if err != nil {
				return err
			}
			seg.OffsetExp = off
		default:
			return werr.Parse(werr.KindInvalidDataTag, "")
		}
		n, err := c.ReadULEB32()
		if err != nil {
			return err
		}
		b, err := c.ReadExact(int(n))
		if err != nil {
			return err
		}
		seg.Bytes = append([]byte{}, b...)
		m.Data[i] = seg
	}
	return nil
}
