package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/streamwasm/streamwasm/wasm"
)

func main() {
	var (
		wasmFile      = flag.String("wasm", "", "Path to wasm module file")
		chunkSize     = flag.Int("chunk", 4096, "Bytes fed to the parser per Push")
		workers       = flag.Int("workers", 4, "Function-body validation worker count")
		refFuncStrict = flag.Bool("strict-ref-func", false, "Require ref.func targets to be exported, start, or element-referenced")
		verbose       = flag.Bool("v", false, "Enable verbose logging")
		interactive   = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: streamwasm-parse -wasm <file.wasm> [-chunk N] [-workers N] [-strict-ref-func]")
		fmt.Fprintln(os.Stderr, "       streamwasm-parse -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: logger: %v\n", err)
			os.Exit(1)
		}
		wasm.SetLogger(l)
	}

	if *interactive {
		if err := runInteractive(*wasmFile, *chunkSize, *workers, *refFuncStrict); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *chunkSize, *workers, *refFuncStrict); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile string, chunkSize, workers int, refFuncStrict bool) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	m, err := parseChunked(context.Background(), data, chunkSize, workers, refFuncStrict)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	fmt.Printf("Module: %s\n", wasmFile)
	fmt.Printf("Types: %d\n", len(m.Types))
	fmt.Printf("Functions: %d\n", len(m.Funcs))
	fmt.Printf("Tables: %d\n", len(m.Tables))
	fmt.Printf("Memories: %d\n", len(m.Memories))
	fmt.Printf("Globals: %d\n", len(m.Globals))
	fmt.Printf("Exports: %d\n", len(m.Exports))
	fmt.Printf("Elements: %d\n", len(m.Elements))
	fmt.Printf("Data segments: %d\n", len(m.Data))

	if len(m.Exports) > 0 {
		fmt.Printf("\nExports:\n")
		for _, e := range m.Exports {
			fmt.Printf("  %s (kind %d, idx %d)\n", e.Name, e.Kind, e.Idx)
		}
	}

	return nil
}

// parseChunked feeds data into a Parser chunkSize bytes at a time, regardless
// of any boundary data happens to fall on, demonstrating the decoder's
// chunk-size invariance.
func parseChunked(ctx context.Context, data []byte, chunkSize, workers int, refFuncStrict bool) (*wasm.Module, error) {
	if chunkSize < 1 {
		chunkSize = 1
	}
	p := wasm.NewParserWithConfig(ctx, wasm.Config{
		WorkerCount:   workers,
		MaxChunkBytes: chunkSize,
		RefFuncStrict: refFuncStrict,
	})
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := p.Push(data[off:end]); err != nil {
			return nil, err
		}
	}
	return p.Finish()
}
