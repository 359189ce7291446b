package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/layrjs/layr-sub008/errors"
)

// Validator is a named predicate attached to a ValueType. Validators travel
// with introspected component shapes, so each one carries a Source string:
// a canonical "name(arg)" expression that the receiving side reconstitutes
// into a callable via a ValidatorRegistry.
type Validator struct {
	Name   string
	Arg    any
	Source string
	Fn     func(value any) bool
}

// ValidatorBuilder constructs a validator from its optional argument.
type ValidatorBuilder func(arg any) (func(value any) bool, error)

// ValidatorRegistry maps validator names to builders so that validators
// received over the wire can be reconstituted into callables.
type ValidatorRegistry struct {
	mu       sync.RWMutex
	builders map[string]ValidatorBuilder
}

// NewValidatorRegistry creates a registry pre-populated with the builtin
// validators.
func NewValidatorRegistry() *ValidatorRegistry {
	r := &ValidatorRegistry{builders: make(map[string]ValidatorBuilder)}
	for name, builder := range builtinValidators {
		r.builders[name] = builder
	}
	return r
}

// Register adds a custom validator builder. Registering a name twice is an
// error so application validators cannot silently shadow builtins.
func (r *ValidatorRegistry) Register(name string, builder ValidatorBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("validator %q is already registered", name),
			"ValidatorRegistry", "Register", "duplicate validator check")
	}
	r.builders[name] = builder
	return nil
}

// Build constructs a Validator from a name and argument.
func (r *ValidatorRegistry) Build(name string, arg any) (Validator, error) {
	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()
	if !ok {
		return Validator{}, errors.WrapInvalid(
			fmt.Errorf("unknown validator %q", name),
			"ValidatorRegistry", "Build", "validator lookup")
	}
	fn, err := builder(arg)
	if err != nil {
		return Validator{}, errors.WrapInvalid(err, "ValidatorRegistry", "Build",
			fmt.Sprintf("building validator %q", name))
	}
	return Validator{Name: name, Arg: arg, Source: FormatValidatorSource(name, arg), Fn: fn}, nil
}

// Reconstitute parses a wire source expression ("minLength(5)") and builds
// the matching callable validator.
func (r *ValidatorRegistry) Reconstitute(source string) (Validator, error) {
	name, arg, err := parseValidatorSource(source)
	if err != nil {
		return Validator{}, err
	}
	return r.Build(name, arg)
}

// FormatValidatorSource renders the canonical wire form of a validator.
// The argument is JSON-encoded; argument-less validators render as "name()".
func FormatValidatorSource(name string, arg any) string {
	if arg == nil {
		return name + "()"
	}
	encoded, err := json.Marshal(arg)
	if err != nil {
		return name + "()"
	}
	return fmt.Sprintf("%s(%s)", name, encoded)
}

func parseValidatorSource(source string) (name string, arg any, err error) {
	open := strings.IndexByte(source, '(')
	if open <= 0 || !strings.HasSuffix(source, ")") {
		return "", nil, errors.WrapInvalid(
			fmt.Errorf("malformed validator source %q", source),
			"ValidatorRegistry", "Reconstitute", "source parsing")
	}
	name = source[:open]
	body := source[open+1 : len(source)-1]
	if body == "" {
		return name, nil, nil
	}
	if err := json.Unmarshal([]byte(body), &arg); err != nil {
		return "", nil, errors.WrapInvalid(err, "ValidatorRegistry", "Reconstitute",
			fmt.Sprintf("argument of validator %q", name))
	}
	return name, arg, nil
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func argAsFloat(arg any) (float64, error) {
	f, ok := asFloat(arg)
	if !ok {
		return 0, fmt.Errorf("numeric argument required, got %T", arg)
	}
	return f, nil
}

// builtinValidators are the validators every registry understands. Builders
// validate their argument once so the per-value predicate stays allocation
// free.
var builtinValidators = map[string]ValidatorBuilder{
	"notEmpty": func(_ any) (func(any) bool, error) {
		return func(value any) bool {
			switch v := value.(type) {
			case string:
				return v != ""
			case []any:
				return len(v) > 0
			default:
				return false
			}
		}, nil
	},
	"minLength": func(arg any) (func(any) bool, error) {
		min, err := argAsFloat(arg)
		if err != nil {
			return nil, err
		}
		return func(value any) bool {
			s, ok := value.(string)
			return ok && float64(len(s)) >= min
		}, nil
	},
	"maxLength": func(arg any) (func(any) bool, error) {
		max, err := argAsFloat(arg)
		if err != nil {
			return nil, err
		}
		return func(value any) bool {
			s, ok := value.(string)
			return ok && float64(len(s)) <= max
		}, nil
	},
	"match": func(arg any) (func(any) bool, error) {
		pattern, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("string pattern required, got %T", arg)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		return func(value any) bool {
			s, ok := value.(string)
			return ok && re.MatchString(s)
		}, nil
	},
	"positive": func(_ any) (func(any) bool, error) {
		return func(value any) bool {
			f, ok := asFloat(value)
			return ok && f > 0
		}, nil
	},
	"integer": func(_ any) (func(any) bool, error) {
		return func(value any) bool {
			f, ok := asFloat(value)
			return ok && f == float64(int64(f))
		}, nil
	},
	"greaterThan": func(arg any) (func(any) bool, error) {
		bound, err := argAsFloat(arg)
		if err != nil {
			return nil, err
		}
		return func(value any) bool {
			f, ok := asFloat(value)
			return ok && f > bound
		}, nil
	},
	"lessThan": func(arg any) (func(any) bool, error) {
		bound, err := argAsFloat(arg)
		if err != nil {
			return nil, err
		}
		return func(value any) bool {
			f, ok := asFloat(value)
			return ok && f < bound
		}, nil
	},
	"anyOf": func(arg any) (func(any) bool, error) {
		allowed, ok := arg.([]any)
		if !ok {
			return nil, fmt.Errorf("array argument required, got %T", arg)
		}
		return func(value any) bool {
			for _, a := range allowed {
				if a == value {
					return true
				}
			}
			return false
		}, nil
	},
}
