// Package errors provides the structured error taxonomy for the streamwasm parser.
//
// Every error the parser or validator returns is one of three kinds, matching
// the module's three failure domains:
//
//   - ParseError: malformed bytes (bad magic, bad tag, invalid UTF-8)
//   - ValidationError: well-formed but ill-typed or structurally wrong
//   - ReadError: cursor-level framing failures (EOF, LEB128 overflow)
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindUnexpectedType).
//		Detail("expected i32, got i64").
//		Build()
//
// Or one of the convenience constructors below. All errors implement the
// standard error interface and support errors.Is/As/Unwrap.
package errors
