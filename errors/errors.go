package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred.
type Phase string

const (
	PhaseRead     Phase = "read"     // cursor-level byte framing
	PhaseParse    Phase = "parse"    // malformed bytes, bad tags
	PhaseValidate Phase = "validate" // well-formed but ill-typed
)

// Kind categorizes the error within its phase.
type Kind string

// ReadError kinds (Phase == PhaseRead).
const (
	KindUnexpectedEof  Kind = "unexpected_eof"
	KindLeb128TooLarge Kind = "leb128_too_large"
	KindLeb128TooLong  Kind = "leb128_too_long"
)

// ParseError kinds (Phase == PhaseParse).
const (
	KindInvalidModuleMagic     Kind = "invalid_module_magic"
	KindInvalidVersion         Kind = "invalid_version"
	KindInvalidSectionID       Kind = "invalid_section_id"
	KindInvalidFunctionTypeTag Kind = "invalid_function_type_tag"
	KindInvalidValueTypeTag    Kind = "invalid_value_type_tag"
	KindInvalidUTF8            Kind = "invalid_utf8"
	KindInvalidExternTag       Kind = "invalid_extern_tag"
	KindExpectedReferenceType  Kind = "expected_reference_type"
	KindInvalidLimitsFlag      Kind = "invalid_limits_flag"
	KindInvalidMutabilityFlag  Kind = "invalid_mutability_flag"
	KindInvalidElementTag      Kind = "invalid_element_tag"
	KindInvalidDataTag         Kind = "invalid_data_tag"
	KindUnknownOpcode          Kind = "unknown_opcode"
)

// ValidationError kinds (Phase == PhaseValidate).
const (
	KindInvalidLimits              Kind = "invalid_limits"
	KindInvalidFunctionIndex       Kind = "invalid_function_index"
	KindInvalidTableIndex          Kind = "invalid_table_index"
	KindInvalidMemoryIndex         Kind = "invalid_memory_index"
	KindInvalidGlobalIndex         Kind = "invalid_global_index"
	KindInvalidTypeIndex           Kind = "invalid_type_index"
	KindInvalidDataIndex           Kind = "invalid_data_index"
	KindInvalidElementIndex        Kind = "invalid_element_index"
	KindDataCountMismatch          Kind = "data_count_mismatch"
	KindCodeCountMismatch          Kind = "code_count_mismatch"
	KindStackHeightMismatch        Kind = "stack_height_mismatch"
	KindUnexpectedType             Kind = "unexpected_type"
	KindStackEmpty                 Kind = "stack_empty"
	KindNoFramesLeft               Kind = "no_frames_left"
	KindInvalidSelectType          Kind = "invalid_select_type"
	KindHangingElse                Kind = "hanging_else"
	KindInvalidLabelIndex          Kind = "invalid_label_index"
	KindBrTableArityMismatch       Kind = "br_table_arity_mismatch"
	KindInvalidLocalIndex          Kind = "invalid_local_index"
	KindInvalidGlobalSet           Kind = "invalid_global_set"
	KindMissingDataCount           Kind = "missing_data_count"
	KindInvalidAlignment           Kind = "invalid_alignment"
	KindCanOnlyCallFuncref         Kind = "can_only_call_funcref"
	KindExpectedReference          Kind = "expected_reference"
	KindTableValueTypeMismatch     Kind = "table_value_type_mismatch"
	KindExpectedNonReference       Kind = "expected_non_reference"
	KindInvalidInitExprInstruction Kind = "invalid_init_expr_instruction"
	KindFuncNotDeclared            Kind = "func_not_declared"
	KindDuplicateExport            Kind = "duplicate_export"
	KindInvalidGlobalGet           Kind = "invalid_global_get"
)

// Error is the structured error type returned throughout the parser and
// validator.
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Detail   string
	Path     []string
	Expected any
	Got      any
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Phase and Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New starts building an error of the given phase and kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

// Path sets the field/section/instruction path.
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Value sets the offending value.
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Expected sets the expected value of a mismatch error.
func (b *Builder) Expected(v any) *Builder {
	b.err.Expected = v
	return b
}

// Got sets the observed value of a mismatch error.
func (b *Builder) Got(v any) *Builder {
	b.err.Got = v
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the three taxonomies.

// Read creates a ReadError with no further detail.
func Read(kind Kind) *Error {
	return &Error{Phase: PhaseRead, Kind: kind}
}

// Leb128TooLarge creates the ReadError for a LEB128 value overrunning its
// declared bit width.
func Leb128TooLarge(width int) *Error {
	return &Error{Phase: PhaseRead, Kind: KindLeb128TooLarge, Detail: fmt.Sprintf("value exceeds %d-bit width", width)}
}

// Leb128TooLong creates the ReadError for a LEB128 encoding whose final
// permissible byte carries data bits beyond the declared width (for signed
// values: bits that don't agree with sign extension).
func Leb128TooLong() *Error {
	return &Error{Phase: PhaseRead, Kind: KindLeb128TooLong}
}

// UnexpectedEof creates the ReadError signaling a short read; callers rewind
// the cursor and retry after pushing more bytes.
func UnexpectedEof() *Error {
	return &Error{Phase: PhaseRead, Kind: KindUnexpectedEof}
}

// Parse creates a ParseError.
func Parse(kind Kind, detail string) *Error {
	return &Error{Phase: PhaseParse, Kind: kind, Detail: detail}
}

// InvalidModuleMagic creates the ParseError for a missing or wrong magic
// number at the start of the module.
func InvalidModuleMagic(got [4]byte) *Error {
	return &Error{Phase: PhaseParse, Kind: KindInvalidModuleMagic, Detail: fmt.Sprintf("got %x", got), Got: got}
}

// InvalidVersion creates the ParseError for an unsupported binary version.
func InvalidVersion(got uint32) *Error {
	return &Error{Phase: PhaseParse, Kind: KindInvalidVersion, Detail: fmt.Sprintf("got %d, want 1", got), Got: got}
}

// InvalidSectionID creates the ParseError for a section id byte outside
// 0..12, or one appearing out of the fixed section order.
func InvalidSectionID(id byte) *Error {
	return &Error{Phase: PhaseParse, Kind: KindInvalidSectionID, Detail: fmt.Sprintf("id %d", id), Got: id}
}

// UnknownOpcode creates the ParseError for an opcode byte this parser does
// not recognize, optionally carrying the 0xFC-style extension sub-opcode.
func UnknownOpcode(b byte, ext *uint32) *Error {
	detail := fmt.Sprintf("opcode 0x%02x", b)
	if ext != nil {
		detail = fmt.Sprintf("opcode 0x%02x extension 0x%x", b, *ext)
	}
	return &Error{Phase: PhaseParse, Kind: KindUnknownOpcode, Detail: detail, Got: b}
}

// InvalidUTF8 creates the ParseError for a name string that fails UTF-8
// validation.
func InvalidUTF8(path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// Validate creates a ValidationError.
func Validate(kind Kind, detail string) *Error {
	return &Error{Phase: PhaseValidate, Kind: kind, Detail: detail}
}

// UnexpectedType creates the stack-type-mismatch ValidationError.
func UnexpectedType(expected, got any) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindUnexpectedType,
		Detail:   fmt.Sprintf("expected %v, got %v", expected, got),
		Expected: expected,
		Got:      got,
	}
}

// StackHeightMismatch creates the frame-exit stack-height ValidationError.
func StackHeightMismatch(expected, got int) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindStackHeightMismatch,
		Detail:   fmt.Sprintf("expected stack height %d, got %d", expected, got),
		Expected: expected,
		Got:      got,
	}
}

// InvalidInitExprInstruction creates the init-expression-mode ValidationError
// for any instruction that isn't one of the allowed constant forms.
func InvalidInitExprInstruction(opcode byte) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidInitExprInstruction,
		Detail: fmt.Sprintf("opcode 0x%02x is not a constant instruction", opcode),
		Got:    opcode,
	}
}

// StackEmpty creates the ValidationError for popping past the current
// frame's init_height with the frame not in the unreachable state.
func StackEmpty() *Error {
	return &Error{Phase: PhaseValidate, Kind: KindStackEmpty}
}

// NoFramesLeft creates the ValidationError for an end/else with no matching
// open block frame.
func NoFramesLeft() *Error {
	return &Error{Phase: PhaseValidate, Kind: KindNoFramesLeft}
}

// HangingElse creates the ValidationError for an else instruction whose
// enclosing frame was not opened by if.
func HangingElse() *Error {
	return &Error{Phase: PhaseValidate, Kind: KindHangingElse}
}

// InvalidLabelIndex creates the ValidationError for a branch target deeper
// than the open frame stack.
func InvalidLabelIndex(idx uint32, depth int) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidLabelIndex,
		Detail: fmt.Sprintf("label index %d exceeds frame depth %d", idx, depth),
		Got:    idx,
	}
}

// BrTableArityMismatch creates the ValidationError for a br_table whose
// target labels disagree on arity.
func BrTableArityMismatch() *Error {
	return &Error{Phase: PhaseValidate, Kind: KindBrTableArityMismatch}
}

// OutOfBounds creates the ValidationError for an index into a module index
// space (type, function, table, memory, global, element, data) that exceeds
// the space's length.
func OutOfBounds(kind Kind, path []string, index, length int) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   kind,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// DataCountMismatch creates the ValidationError for a data segment count
// that disagrees with a preceding data-count section.
func DataCountMismatch(declared, actual uint32) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindDataCountMismatch,
		Detail:   fmt.Sprintf("data-count section declared %d, data section has %d", declared, actual),
		Expected: declared,
		Got:      actual,
	}
}

// CodeCountMismatch creates the ValidationError for a function section count
// that disagrees with the code section's body count.
func CodeCountMismatch(declared, actual uint32) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindCodeCountMismatch,
		Detail:   fmt.Sprintf("function section declared %d, code section has %d", declared, actual),
		Expected: declared,
		Got:      actual,
	}
}

// MissingDataCount creates the ValidationError for a memory.init or
// data.drop instruction appearing without a preceding data-count section.
func MissingDataCount() *Error {
	return &Error{Phase: PhaseValidate, Kind: KindMissingDataCount}
}

// InvalidLimits creates the ValidationError for a Limits pair whose minimum
// exceeds its maximum, or whose values exceed the index space's bound.
func InvalidLimits(detail string) *Error {
	return &Error{Phase: PhaseValidate, Kind: KindInvalidLimits, Detail: detail}
}

// FuncNotDeclared creates the ValidationError for a ref.func in strict mode
// targeting a function that is not exported, not the start function, and
// does not appear in any element segment.
func FuncNotDeclared(idx uint32) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindFuncNotDeclared,
		Detail: fmt.Sprintf("function %d is not declared", idx),
		Got:    idx,
	}
}

// Wrap wraps an existing error with additional phase/kind context.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
