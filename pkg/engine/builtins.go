package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/blockscheme/pkg/scheme"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scheme scripts before passing them to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: clear-literal -> clear_literal
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator).
//
//  3. Line comments: ; and ;; become //, which is what zygomys accepts.
//
// All transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters is part of a name.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpBlockRef wraps a scheme.BlockID so it can be passed between builtins.
type sexpBlockRef struct {
	id   scheme.BlockID
	kind scheme.Kind
}

func (r *sexpBlockRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(block %s #%d)", r.kind, r.id)
}
func (r *sexpBlockRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_add) and plain strings ("add").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toBlockRef accepts a block reference returned by (block ...) or a bare
// integer id.
func toBlockRef(s zygo.Sexp) (scheme.BlockID, error) {
	switch v := s.(type) {
	case *sexpBlockRef:
		return v.id, nil
	case *zygo.SexpInt:
		if v.Val < 0 || v.Val > math.MaxUint32 {
			return 0, fmt.Errorf("block id out of range, got %d", v.Val)
		}
		return scheme.BlockID(v.Val), nil
	}
	return 0, fmt.Errorf("expected block reference, got %T (%s)", s, s.SexpString(nil))
}

// toSlot converts a 1-based input number to a scheme.Slot.
func toSlot(s zygo.Sexp) (scheme.Slot, error) {
	n, err := toInt(s)
	if err != nil {
		return 0, err
	}
	return scheme.InputSlot(n)
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// builder is the scheme a script populates. failure holds the first scheme
// error raised by a builtin so it can be reported without going through
// the interpreter's error text.
type builder struct {
	s       *scheme.Scheme
	failure error
}

func newBuilder() *builder {
	return &builder{s: scheme.New()}
}

func (b *builder) fail(op string, err error) error {
	if b.failure == nil {
		b.failure = err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (b *builder) result() *Result {
	return &Result{Scheme: b.s, Positions: b.s.Positions()}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scheme builtins into a zygomys environment.
// The builtins operate on the builder's Scheme, populating it during
// evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (block :add :flt) -> block reference. The type defaults to :flt.
	// -----------------------------------------------------------------------
	env.AddFunction("block", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 || len(args) > 2 {
			return zygo.SexpNull, fmt.Errorf("block requires a kind and an optional type, got %d arguments", len(args))
		}
		kindName, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("block: kind: %w", err)
		}
		kind, err := scheme.ParseKind(kindName)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("block: %w", err)
		}
		tn := scheme.TypeFloat
		if len(args) == 2 {
			typeName, err := toKeywordString(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("block: type: %w", err)
			}
			if tn, err = scheme.ParseTypeName(typeName); err != nil {
				return zygo.SexpNull, fmt.Errorf("block: %w", err)
			}
		}

		id, err := b.s.AddBlock(kind, tn)
		if err != nil {
			return zygo.SexpNull, b.fail("block", err)
		}
		return &sexpBlockRef{id: id, kind: kind}, nil
	})

	// -----------------------------------------------------------------------
	// (connect src dst 1)
	// (disconnect src dst 1)
	// -----------------------------------------------------------------------
	wire := func(op string, apply func(src, dst scheme.BlockID, slot scheme.Slot) error) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 3 {
				return zygo.SexpNull, fmt.Errorf("%s requires a source, a target and an input number, got %d arguments", op, len(args))
			}
			src, err := toBlockRef(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: source: %w", op, err)
			}
			dst, err := toBlockRef(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: target: %w", op, err)
			}
			slot, err := toSlot(args[2])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", op, err)
			}
			if err := apply(src, dst, slot); err != nil {
				return zygo.SexpNull, b.fail(op, err)
			}
			return args[1], nil
		}
	}
	env.AddFunction("connect", wire("connect", b.s.Connect))
	env.AddFunction("disconnect", wire("disconnect", b.s.Disconnect))

	// -----------------------------------------------------------------------
	// (literal blk 2.5 1)
	// -----------------------------------------------------------------------
	env.AddFunction("literal", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("literal requires a block, a value and an input number, got %d arguments", len(args))
		}
		id, err := toBlockRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("literal: block: %w", err)
		}
		v, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("literal: value: %w", err)
		}
		slot, err := toSlot(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("literal: %w", err)
		}
		if err := b.s.SetLiteral(id, v, slot); err != nil {
			return zygo.SexpNull, b.fail("literal", err)
		}
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (clear-literal blk 1)
	// -----------------------------------------------------------------------
	env.AddFunction("clear_literal", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("clear-literal requires a block and an input number, got %d arguments", len(args))
		}
		id, err := toBlockRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("clear-literal: block: %w", err)
		}
		slot, err := toSlot(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("clear-literal: %w", err)
		}
		if err := b.s.ClearLiteral(id, slot); err != nil {
			return zygo.SexpNull, b.fail("clear-literal", err)
		}
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (remove-block blk)
	// -----------------------------------------------------------------------
	env.AddFunction("remove_block", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("remove-block requires a block, got %d arguments", len(args))
		}
		id, err := toBlockRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("remove-block: %w", err)
		}
		if err := b.s.RemoveBlock(id); err != nil {
			return zygo.SexpNull, b.fail("remove-block", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (place blk 120 40)
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("place requires a block and two coordinates, got %d arguments", len(args))
		}
		id, err := toBlockRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: block: %w", err)
		}
		x, err := toInt(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: x: %w", err)
		}
		y, err := toInt(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: y: %w", err)
		}
		if err := b.s.SetPosition(id, scheme.Position{X: x, Y: y}); err != nil {
			return zygo.SexpNull, b.fail("place", err)
		}
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (block-id blk) -> integer id
	// -----------------------------------------------------------------------
	env.AddFunction("block_id", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("block-id requires a block, got %d arguments", len(args))
		}
		id, err := toBlockRef(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("block-id: %w", err)
		}
		return &zygo.SexpInt{Val: int64(id)}, nil
	})
}
