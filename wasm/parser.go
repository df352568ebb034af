package wasm

import (
	"context"

	"go.uber.org/zap"

	werr "github.com/streamwasm/streamwasm/errors"
	"github.com/streamwasm/streamwasm/internal/workerpool"
)

type parserState int

const (
	stMagic parserState = iota
	stVersion
	stSectionStart
	stSectionSize
	stSectionBody
	stCodeCount
	stFuncBodySize
	stFuncBodyBody
	stDone
)

// Parser is a streaming, chunk-size-invariant decoder and validator for a
// single WebAssembly binary module. Bytes are fed incrementally via Push;
// function bodies are handed to a worker pool for concurrent validation as
// soon as the module sections they depend on are complete.
type Parser struct {
	c     *Cursor
	m     *Module
	state parserState
	pool  *workerpool.Pool

	lastOrder   int
	sectionID   byte
	sectionSize uint32

	declaredFuncs uint32 // Function section count, i.e. expected code bodies
	codeIdx       uint32
	bodySize      uint32

	done bool
}

// Config holds the knobs a caller may tune; the core package never reads
// these from a file or environment variable — only cmd/streamwasm-parse
// binds them to flags.
type Config struct {
	// WorkerCount sizes the concurrent function-body validation pool.
	// Values below 1 are treated as 1.
	WorkerCount int

	// MaxChunkBytes is advisory: it bounds how large a single Push a caller
	// feeding a file in fixed-size chunks should make. The parser itself
	// places no limit on chunk size.
	MaxChunkBytes int

	// RefFuncStrict gates ref.func's declaredness check: when true, a
	// ref.func inside a function body must target a function that is
	// exported, is the start function, or appears in some element segment.
	RefFuncStrict bool
}

// NewParser creates a parser whose concurrent body validation runs against
// the given worker count (below 1 is treated as 1) and is cancelled if ctx
// is cancelled.
func NewParser(ctx context.Context, workers int) *Parser {
	return NewParserWithConfig(ctx, Config{WorkerCount: workers})
}

// NewParserWithConfig creates a parser per the given Config.
func NewParserWithConfig(ctx context.Context, cfg Config) *Parser {
	return &Parser{
		c:    NewCursor(),
		m:    &Module{StrictRefFunc: cfg.RefFuncStrict},
		pool: workerpool.New(ctx, cfg.WorkerCount),
	}
}

// Push feeds more bytes to the parser, advancing the state machine as far
// as the buffered data allows. It returns a terminal parse or validation
// error; running out of buffered bytes mid-transition is not an error —
// the parser simply waits for the next Push.
func (p *Parser) Push(data []byte) error {
	p.c.Push(data)
	for {
		progressed, err := p.advance()
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
}

// Finish blocks until all enqueued function bodies finish validating and
// confirms the cursor ended exactly at the end of a complete module. It
// returns the first validation error encountered, if any.
func (p *Parser) Finish() (*Module, error) {
	if err := p.pool.Wait(); err != nil {
		return nil, err
	}
	if p.state == stSectionStart && p.c.AtEOF() {
		p.state = stDone
	}
	if p.state != stDone {
		return nil, werr.UnexpectedEof()
	}
	if !p.c.AtEOF() {
		return nil, werr.Parse(werr.KindInvalidSectionID, "trailing bytes after module end")
	}
	if uint32(len(p.m.Code)) != p.declaredFuncs {
		return nil, werr.CodeCountMismatch(p.declaredFuncs, uint32(len(p.m.Code)))
	}
	if err := p.m.Validate(); err != nil {
		return nil, err
	}
	return p.m, nil
}

var magicBytes = [4]byte{0x00, 0x61, 0x73, 0x6D}
var versionBytes = [4]byte{0x01, 0x00, 0x00, 0x00}

// advance attempts one restartable state transition. On UnexpectedEof it
// rewinds the cursor to where the transition began and reports no
// progress; the caller retries after the next Push.
func (p *Parser) advance() (bool, error) {
	start := p.c.Pos()
	progressed, err := p.step()
	if err != nil {
		if isUnexpectedEof(err) {
			p.c.SeekTo(start)
			return false, nil
		}
		return false, err
	}
	return progressed, nil
}

func isUnexpectedEof(err error) bool {
	e, ok := err.(*werr.Error)
	return ok && e.Phase == werr.PhaseRead && e.Kind == werr.KindUnexpectedEof
}

func (p *Parser) step() (bool, error) {
	switch p.state {
	case stMagic:
		b, err := p.c.ReadExact(4)
		if err != nil {
			return false, err
		}
		var got [4]byte
		copy(got[:], b)
		if got != magicBytes {
			return false, werr.InvalidModuleMagic(got)
		}
		p.state = stVersion
		return true, nil

	case stVersion:
		b, err := p.c.ReadExact(4)
		if err != nil {
			return false, err
		}
		version := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		if version != Version {
			return false, werr.InvalidVersion(version)
		}
		p.state = stSectionStart
		return true, nil

	case stSectionStart:
		if p.c.AtEOF() {
			// Only Finish can tell the module is complete; more sections
			// may still arrive with the next Push.
			return false, nil
		}
		id, err := p.c.ReadByte()
		if err != nil {
			return false, err
		}
		if err := p.checkSectionOrder(id); err != nil {
			return false, err
		}
		p.sectionID = id
		p.state = stSectionSize
		return true, nil

	case stSectionSize:
		size, err := p.c.ReadULEB32()
		if err != nil {
			return false, err
		}
		p.sectionSize = size
		Logger().Debug("section boundary", zap.Uint8("id", p.sectionID), zap.Uint32("size", size))
		if p.sectionID == SectionCode {
			// Every section a declared-function check depends on (Export,
			// Start, Element) is strictly ordered before Code, so this is
			// the last safe point to compute it before bodies start
			// validating concurrently.
			p.m.computeDeclaredFuncs()
			p.state = stCodeCount
		} else {
			p.state = stSectionBody
		}
		return true, nil

	case stSectionBody:
		if p.c.Len()-p.c.Pos() < int(p.sectionSize) {
			return false, werr.UnexpectedEof()
		}
		body, err := p.c.ReadExact(int(p.sectionSize))
		if err != nil {
			return false, err
		}
		if err := p.dispatchSection(p.sectionID, body); err != nil {
			return false, err
		}
		p.state = stSectionStart
		return true, nil

	case stCodeCount:
		count, err := p.c.ReadULEB32()
		if err != nil {
			return false, err
		}
		if count != p.declaredFuncs {
			return false, werr.CodeCountMismatch(p.declaredFuncs, count)
		}
		p.codeIdx = 0
		if count == 0 {
			p.state = stSectionStart
			return true, nil
		}
		p.state = stFuncBodySize
		return true, nil

	case stFuncBodySize:
		size, err := p.c.ReadULEB32()
		if err != nil {
			return false, err
		}
		p.bodySize = size
		p.state = stFuncBodyBody
		return true, nil

	case stFuncBodyBody:
		return p.readFuncBody()

	case stDone:
		return false, nil
	}
	return false, nil
}

// checkSectionOrder enforces the fixed section ordering; custom sections
// are exempt and may appear anywhere.
func (p *Parser) checkSectionOrder(id byte) error {
	if id == SectionCustom {
		return nil
	}
	order := sectionOrder(id)
	if order == 0 {
		return werr.InvalidSectionID(id)
	}
	if order <= p.lastOrder {
		return werr.InvalidSectionID(id)
	}
	p.lastOrder = order
	return nil
}

func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionGlobal:
		return 6
	case SectionExport:
		return 7
	case SectionStart:
		return 8
	case SectionElement:
		return 9
	case SectionDataCount:
		return 10
	case SectionCode:
		return 11
	case SectionData:
		return 12
	default:
		return 0
	}
}

func (p *Parser) dispatchSection(id byte, body []byte) error {
	sc := NewCursor()
	sc.Push(body)

	var err error
	switch id {
	case SectionCustom:
		err = parseCustomSection(sc, p.m)
	case SectionType:
		err = parseTypeSection(sc, p.m)
	case SectionImport:
		err = parseImportSection(sc, p.m)
		if err == nil {
			p.m.computeImportTotals()
		}
	case SectionFunction:
		err = parseFunctionSection(sc, p.m)
		if err == nil {
			p.declaredFuncs = uint32(len(p.m.Funcs))
		}
	case SectionTable:
		err = parseTableSection(sc, p.m)
	case SectionMemory:
		err = parseMemorySection(sc, p.m)
	case SectionGlobal:
		err = parseGlobalSection(sc, p.m)
	case SectionExport:
		err = parseExportSection(sc, p.m)
	case SectionStart:
		err = parseStartSection(sc, p.m)
	case SectionElement:
		err = parseElementSection(sc, p.m)
	case SectionDataCount:
		err = parseDataCountSection(sc, p.m)
	case SectionData:
		err = parseDataSection(sc, p.m)
		if err == nil {
			if err := p.checkDataCount(); err != nil {
				return err
			}
		}
	default:
		return werr.InvalidSectionID(id)
	}
	if err != nil {
		return err
	}
	if !sc.AtEOF() {
		return werr.Parse(werr.KindInvalidSectionID, "section has trailing bytes")
	}
	return nil
}

func (p *Parser) checkDataCount() error {
	if p.m.DataCount == nil {
		return nil
	}
	if uint32(len(p.m.Data)) != *p.m.DataCount {
		return werr.DataCountMismatch(*p.m.DataCount, uint32(len(p.m.Data)))
	}
	return nil
}

// readFuncBody parses one code-section entry: its local declarations and
// raw instruction bytes, then enqueues it for concurrent validation. The
// whole read is a single restartable unit — any UnexpectedEof rewinds to
// the first byte after the declared size so the entry is retried whole on
// the next Push.
func (p *Parser) readFuncBody() (bool, error) {
	bodyStart := p.c.Pos()

	if p.c.Len()-p.c.Pos() < int(p.bodySize) {
		return false, werr.UnexpectedEof()
	}

	localsStart := p.c.Pos()
	localCount, err := p.c.ReadULEB32()
	if err != nil {
		return false, err
	}
	locals := make([]LocalEntry, localCount)
	var expanded []ValType
	for i := uint32(0); i < localCount; i++ {
		count, err := p.c.ReadULEB32()
		if err != nil {
			return false, err
		}
		vt, err := DecodeValType(p.c)
		if err != nil {
			return false, err
		}
		locals[i] = LocalEntry{Count: count, ValType: vt}
		for j := uint32(0); j < count; j++ {
			expanded = append(expanded, vt)
		}
	}

	consumedLocals := p.c.Pos() - localsStart
	codeLen := int(p.bodySize) - consumedLocals
	if codeLen < 0 {
		return false, werr.Validate(werr.KindCodeCountMismatch, "declared body size shorter than its locals")
	}
	code, err := p.c.ReadExact(codeLen)
	if err != nil {
		return false, err
	}
	// own the bytes: bodyStart..p.c.Pos() may be overwritten by later pushes
	// only in principle (Cursor never shrinks its backing slice), but a
	// defensive copy keeps the job independent of cursor growth.
	codeCopy := make([]byte, len(code))
	copy(codeCopy, code)

	funcIdx := p.codeIdx
	typeIdx := p.m.Funcs[funcIdx]
	p.m.Code = append(p.m.Code, FuncBody{Locals: locals, Code: codeCopy})

	p.enqueueBody(typeIdx, expanded, codeCopy)

	p.codeIdx++
	if p.codeIdx >= p.declaredFuncs {
		p.state = stSectionStart
	} else {
		p.state = stFuncBodySize
	}
	_ = bodyStart
	return true, nil
}

func (p *Parser) enqueueBody(typeIdx uint32, locals []ValType, code []byte) {
	m := p.m
	Logger().Debug("scheduling function body", zap.Uint32("funcIdx", p.codeIdx), zap.Int("bytes", len(code)))
	p.pool.Submit(func(ctx context.Context) error {
		if int(typeIdx) >= len(m.Types) {
			return werr.OutOfBounds(werr.KindInvalidTypeIndex, []string{"code"}, int(typeIdx), len(m.Types))
		}
		fn := m.Types[typeIdx]
		allLocals := append(append([]ValType{}, fn.Params...), locals...)
		v := NewCodeValidator(m, fn, allLocals)
		body := NewCursor()
		body.Push(code)
		return v.ValidateBody(body)
	})
}
