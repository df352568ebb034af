// Package wasm provides a streaming, chunk-size-invariant parser and
// validator for the WebAssembly 1.0 binary module format, plus the
// sign-extension, non-trapping float-to-int, bulk-memory, reference-types,
// and multi-memory-indexing extensions.
//
// # Streaming
//
// Bytes arrive through Push in arbitrarily sized chunks, including one byte
// at a time or the whole module at once; the parser produces the same
// Module regardless of how the input was split:
//
//	p := wasm.NewParser(ctx, runtime.NumCPU())
//	for chunk := range chunks {
//	    if err := p.Push(chunk); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	module, err := p.Finish()
//
// Finish blocks until every function body has finished validating
// concurrently against the module's declared types, tables, and memories,
// checks that the code section held one body per declared function, then
// runs a final structural pass (Module.Validate) over index-space
// references, the data count, exports, the start function, and limits.
//
// # Module structure
//
// A finished module exposes every section as a plain slice:
//
//	module.Types      []FuncType    // function signatures
//	module.Funcs      []uint32      // type indices of locally declared functions
//	module.Tables     []TableType
//	module.Memories   []MemoryType
//	module.Globals    []Global
//	module.Imports    []Import
//	module.Exports    []Export
//	module.Code       []FuncBody
//	module.Data       []DataSegment
//	module.Elements   []Element
//
// Index-space helpers (FuncType, TableAt, MemoryAt, GlobalAt) account for
// imports being numbered before locally declared entities of the same kind,
// per the binary format's index-space rules.
//
// NewParserWithConfig accepts a Config for worker count and RefFuncStrict,
// which tightens ref.func validation to require the target be exported, be
// the start function, or appear in an element segment, rather than merely
// falling within the function index space.
//
// # Errors
//
// Every error returned by this package is a *streamwasm/errors.Error,
// tagged with a Phase (read framing, parse, or validate) and a Kind
// identifying the specific failure. A short read during Push surfaces only
// internally, as a read-phase retry signal; Finish reports a module that
// ends mid-section as a read-phase UnexpectedEof.
package wasm
