package errors

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseValidate,
				Kind:   KindUnexpectedType,
				Path:   []string{"func", "3", "instr", "12"},
				Detail: "expected i32, got i64",
			},
			contains: []string{"[validate]", "unexpected_type", "func.3.instr.12", "expected i32, got i64"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRead,
				Kind:  KindUnexpectedEof,
			},
			contains: []string{"[read]", "unexpected_eof"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseParse,
				Kind:   KindInvalidUTF8,
				Detail: "name section",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[parse]", "invalid_utf8", "name section", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseParse,
		Kind:  KindInvalidModuleMagic,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseValidate,
		Kind:  KindUnexpectedType,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseValidate, Kind: KindUnexpectedType}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseRead, Kind: KindUnexpectedType}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseValidate, Kind: KindStackEmpty}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseValidate, Kind: KindUnexpectedType}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseValidate, KindUnexpectedType).
		Path("func", "0", "instr", "4").
		Expected("i32").
		Got("i64").
		Cause(cause).
		Detail("expected %s, got %s", "i32", "i64").
		Build()

	if err.Phase != PhaseValidate {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseValidate)
	}
	if err.Kind != KindUnexpectedType {
		t.Errorf("Kind = %v, want %v", err.Kind, KindUnexpectedType)
	}
	if len(err.Path) != 4 || err.Path[0] != "func" || err.Path[3] != "4" {
		t.Errorf("Path = %v, want [func 0 instr 4]", err.Path)
	}
	if err.Expected != "i32" {
		t.Errorf("Expected = %v, want i32", err.Expected)
	}
	if err.Got != "i64" {
		t.Errorf("Got = %v, want i64", err.Got)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected i32, got i64" {
		t.Errorf("Detail = %v, want 'expected i32, got i64'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Leb128TooLarge", func(t *testing.T) {
		err := Leb128TooLarge(32)
		if err.Phase != PhaseRead || err.Kind != KindLeb128TooLarge {
			t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
		}
		if !containsSubstring(err.Detail, "32") {
			t.Errorf("Detail = %v, should mention width", err.Detail)
		}
	})

	t.Run("Leb128TooLong", func(t *testing.T) {
		err := Leb128TooLong()
		if err.Kind != KindLeb128TooLong {
			t.Errorf("Kind = %v, want %v", err.Kind, KindLeb128TooLong)
		}
	})

	t.Run("UnexpectedEof", func(t *testing.T) {
		err := UnexpectedEof()
		if err.Phase != PhaseRead || err.Kind != KindUnexpectedEof {
			t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("InvalidModuleMagic", func(t *testing.T) {
		err := InvalidModuleMagic([4]byte{0, 1, 2, 3})
		if err.Kind != KindInvalidModuleMagic {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidModuleMagic)
		}
	})

	t.Run("InvalidVersion", func(t *testing.T) {
		err := InvalidVersion(2)
		if err.Kind != KindInvalidVersion {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidVersion)
		}
		if !containsSubstring(err.Detail, "2") {
			t.Errorf("Detail = %v, should mention got version", err.Detail)
		}
	})

	t.Run("InvalidSectionID", func(t *testing.T) {
		err := InvalidSectionID(99)
		if err.Kind != KindInvalidSectionID {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidSectionID)
		}
	})

	t.Run("UnknownOpcode plain", func(t *testing.T) {
		err := UnknownOpcode(0xff, nil)
		if err.Kind != KindUnknownOpcode {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnknownOpcode)
		}
		if !containsSubstring(err.Detail, "0xff") {
			t.Errorf("Detail = %v, should contain opcode byte", err.Detail)
		}
	})

	t.Run("UnknownOpcode extended", func(t *testing.T) {
		ext := uint32(0x20)
		err := UnknownOpcode(0xfc, &ext)
		if !containsSubstring(err.Detail, "extension") {
			t.Errorf("Detail = %v, should mention extension", err.Detail)
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		data := []byte{0xff, 0xfe}
		err := InvalidUTF8([]string{"name"}, data)
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
	})

	t.Run("UnexpectedType", func(t *testing.T) {
		err := UnexpectedType("i32", "i64")
		if err.Kind != KindUnexpectedType {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnexpectedType)
		}
		if err.Expected != "i32" || err.Got != "i64" {
			t.Errorf("Expected/Got = %v/%v", err.Expected, err.Got)
		}
	})

	t.Run("StackHeightMismatch", func(t *testing.T) {
		err := StackHeightMismatch(2, 1)
		if err.Kind != KindStackHeightMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindStackHeightMismatch)
		}
		if err.Expected != 2 || err.Got != 1 {
			t.Errorf("Expected/Got = %v/%v", err.Expected, err.Got)
		}
	})

	t.Run("InvalidInitExprInstruction", func(t *testing.T) {
		err := InvalidInitExprInstruction(0x20)
		if err.Kind != KindInvalidInitExprInstruction {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidInitExprInstruction)
		}
	})

	t.Run("StackEmpty", func(t *testing.T) {
		err := StackEmpty()
		if err.Kind != KindStackEmpty {
			t.Errorf("Kind = %v, want %v", err.Kind, KindStackEmpty)
		}
	})

	t.Run("NoFramesLeft", func(t *testing.T) {
		err := NoFramesLeft()
		if err.Kind != KindNoFramesLeft {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNoFramesLeft)
		}
	})

	t.Run("HangingElse", func(t *testing.T) {
		err := HangingElse()
		if err.Kind != KindHangingElse {
			t.Errorf("Kind = %v, want %v", err.Kind, KindHangingElse)
		}
	})

	t.Run("InvalidLabelIndex", func(t *testing.T) {
		err := InvalidLabelIndex(5, 2)
		if err.Kind != KindInvalidLabelIndex {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidLabelIndex)
		}
	})

	t.Run("BrTableArityMismatch", func(t *testing.T) {
		err := BrTableArityMismatch()
		if err.Kind != KindBrTableArityMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBrTableArityMismatch)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(KindInvalidFunctionIndex, []string{"call"}, 10, 5)
		if err.Kind != KindInvalidFunctionIndex {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidFunctionIndex)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("DataCountMismatch", func(t *testing.T) {
		err := DataCountMismatch(3, 2)
		if err.Kind != KindDataCountMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindDataCountMismatch)
		}
		if err.Expected != uint32(3) || err.Got != uint32(2) {
			t.Errorf("Expected/Got = %v/%v", err.Expected, err.Got)
		}
	})

	t.Run("CodeCountMismatch", func(t *testing.T) {
		err := CodeCountMismatch(3, 2)
		if err.Kind != KindCodeCountMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCodeCountMismatch)
		}
	})

	t.Run("MissingDataCount", func(t *testing.T) {
		err := MissingDataCount()
		if err.Kind != KindMissingDataCount {
			t.Errorf("Kind = %v, want %v", err.Kind, KindMissingDataCount)
		}
	})

	t.Run("InvalidLimits", func(t *testing.T) {
		err := InvalidLimits("min exceeds max")
		if err.Kind != KindInvalidLimits {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidLimits)
		}
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("short read")
	err := Wrap(PhaseRead, KindUnexpectedEof, cause, "reading section header")
	if !errors.Is(err.Cause, cause) {
		t.Error("Wrap did not set cause")
	}
	if !containsSubstring(err.Error(), "reading section header") {
		t.Errorf("Error() = %v, should contain detail", err.Error())
	}
}

func containsSubstring(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > 0 && containsSubstringHelper(s, substr)))
}

func containsSubstringHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
