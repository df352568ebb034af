package wasm

import (
	"strconv"

	werr "github.com/streamwasm/streamwasm/errors"
)

// Validate checks the finished module for structural validity: every index
// space reference resolves, the data segment count agrees with any Data
// Count section, and limits stay in bounds. The streaming parser runs this once, at Finish, after every
// section and function body has parsed successfully.
func (m *Module) Validate() error {
	if err := m.validateFunctionIndices(); err != nil {
		return err
	}
	if err := m.validateTableIndices(); err != nil {
		return err
	}
	if err := m.validateMemoryIndices(); err != nil {
		return err
	}
	if err := m.validateGlobalIndices(); err != nil {
		return err
	}
	if err := m.validateElements(); err != nil {
		return err
	}
	if err := m.validateData(); err != nil {
		return err
	}
	if err := m.validateExports(); err != nil {
		return err
	}
	if err := m.validateStart(); err != nil {
		return err
	}
	if err := m.validateLimits(); err != nil {
		return err
	}
	return nil
}

func (m *Module) validateFunctionIndices() error {
	total := int(m.TotalFuncs())
	for _, typeIdx := range m.Funcs {
		if int(typeIdx) >= len(m.Types) {
			return werr.OutOfBounds(werr.KindInvalidTypeIndex, []string{"function", "funcs"}, int(typeIdx), len(m.Types))
		}
	}
	if m.Start != nil && int(*m.Start) >= total {
		return werr.OutOfBounds(werr.KindInvalidFunctionIndex, []string{"start"}, int(*m.Start), total)
	}
	return nil
}

func (m *Module) validateTableIndices() error {
	total := int(m.TotalTables())
	for i, el := range m.Elements {
		if el.Mode != ElemModeActive {
			continue
		}
		if int(el.TableIdx) >= total {
			return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"element", itoa(i)}, int(el.TableIdx), total)
		}
	}
	return nil
}

func (m *Module) validateMemoryIndices() error {
	total := int(m.TotalMemories())
	for i, seg := range m.Data {
		if !seg.IsActive {
			continue
		}
		if int(seg.MemIdx) >= total {
			return werr.OutOfBounds(werr.KindInvalidMemoryIndex, []string{"data", itoa(i)}, int(seg.MemIdx), total)
		}
	}
	return nil
}

func (m *Module) validateGlobalIndices() error {
	// Global initializer expressions (global.get referencing only prior
	// imported immutable globals) are enforced inline by the init-expression
	// validator at parse time; nothing further to check structurally here.
	return nil
}

func (m *Module) validateElements() error {
	for i, el := range m.Elements {
		if el.Mode != ElemModeActive {
			continue
		}
		tt, ok := m.TableAt(el.TableIdx)
		if !ok {
			continue // already reported by validateTableIndices
		}
		if tt.ElemType != el.ElemType {
			return werr.Validate(werr.KindTableValueTypeMismatch, "element segment "+itoa(i)+" type disagrees with target table")
		}
	}
	return nil
}

func (m *Module) validateData() error {
	if m.DataCount != nil && uint32(len(m.Data)) != *m.DataCount {
		return werr.DataCountMismatch(*m.DataCount, uint32(len(m.Data)))
	}
	return nil
}

func (m *Module) validateExports() error {
	seen := make(map[string]bool, len(m.Exports))
	for _, exp := range m.Exports {
		if seen[exp.Name] {
			return werr.Validate(werr.KindDuplicateExport, "duplicate export name "+exp.Name)
		}
		seen[exp.Name] = true

		switch exp.Kind {
		case KindFunc:
			if int(exp.Idx) >= int(m.TotalFuncs()) {
				return werr.OutOfBounds(werr.KindInvalidFunctionIndex, []string{"export", exp.Name}, int(exp.Idx), int(m.TotalFuncs()))
			}
		case KindTable:
			if int(exp.Idx) >= int(m.TotalTables()) {
				return werr.OutOfBounds(werr.KindInvalidTableIndex, []string{"export", exp.Name}, int(exp.Idx), int(m.TotalTables()))
			}
		case KindMemory:
			if int(exp.Idx) >= int(m.TotalMemories()) {
				return werr.OutOfBounds(werr.KindInvalidMemoryIndex, []string{"export", exp.Name}, int(exp.Idx), int(m.TotalMemories()))
			}
		case KindGlobal:
			if int(exp.Idx) >= int(m.TotalGlobals()) {
				return werr.OutOfBounds(werr.KindInvalidGlobalIndex, []string{"export", exp.Name}, int(exp.Idx), int(m.TotalGlobals()))
			}
		default:
			return werr.Parse(werr.KindInvalidExternTag, "")
		}
	}
	return nil
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}
	ft := m.FuncType(*m.Start)
	if ft == nil {
		return werr.OutOfBounds(werr.KindInvalidFunctionIndex, []string{"start"}, int(*m.Start), int(m.TotalFuncs()))
	}
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		return werr.Validate(werr.KindUnexpectedType, "start function must take no parameters and return no results")
	}
	return nil
}

func (m *Module) validateLimits() error {
	for i, t := range m.Tables {
		if err := validateLimitsBound(t.Limits, 0xFFFFFFFF); err != nil {
			return pathErr(err, "table", itoa(i))
		}
	}
	for i, mt := range m.Memories {
		if err := validateLimitsBound(mt.Limits, MemoryMaxPages); err != nil {
			return pathErr(err, "memory", itoa(i))
		}
	}
	return nil
}

func validateLimitsBound(l Limits, bound uint32) error {
	if l.Max != nil && l.Min > *l.Max {
		return werr.InvalidLimits("min exceeds max")
	}
	if l.Min > bound {
		return werr.InvalidLimits("min exceeds bound")
	}
	if l.Max != nil && *l.Max > bound {
		return werr.InvalidLimits("max exceeds bound")
	}
	return nil
}

func pathErr(err error, path ...string) error {
	if e, ok := err.(*werr.Error); ok {
		e.Path = path
		return e
	}
	return err
}

func itoa(i int) string { return strconv.Itoa(i) }
