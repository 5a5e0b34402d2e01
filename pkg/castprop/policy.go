package castprop

import (
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	apperrors "github.com/castflow/castflow/pkg/errors"
)

// Policy classifies operator kinds for the cast optimizer. It partitions the
// operator space into three disjoint classes:
//
//   - pass-through: the operator does not care about the numeric precision
//     of its tensors (shape, indexing, selection, activations without
//     accumulation); propagation may walk through it in either direction.
//   - precision-safe: the operator's result is acceptable whether computed
//     in wide or narrow precision; eligible for input-cast collapse and
//     transparent to upstream boundary search.
//   - boundary (the default for anything unlisted): casts may never be
//     moved or removed across it.
//
// A Policy is immutable after construction and safe for concurrent reads.
// It is injected into [Apply] rather than held as package state so it can
// be swapped per target hardware.
type Policy struct {
	passThrough   map[string]struct{}
	precisionSafe map[string]struct{}
}

// Default operator classes. They mirror the operator set of transformer
// training graphs: shape and selection ops move freely, normalization and
// matrix arithmetic tolerate either precision.
var (
	defaultPassThrough = []string{
		"Transpose", "Reshape", "Gather", "Split", "Relu", "Where", "Dropout",
	}
	defaultPrecisionSafe = []string{
		"LayerNorm", "Gelu", "FastGelu", "Tanh", "MatMul", "MatAdd", "Add",
		"Sub", "Mul", "Div", "Neg", "Gemm", "FusedMatMul", "FusedGemm",
	}
)

// NewPolicy builds a policy from explicit operator lists.
// The two classes must be disjoint; an operator in both would make the
// rewrites ambiguous, so overlap is rejected with ErrCodeInvalidPolicy.
func NewPolicy(passThrough, precisionSafe []string) (*Policy, error) {
	p := &Policy{
		passThrough:   make(map[string]struct{}, len(passThrough)),
		precisionSafe: make(map[string]struct{}, len(precisionSafe)),
	}
	for _, op := range passThrough {
		p.passThrough[op] = struct{}{}
	}
	for _, op := range precisionSafe {
		if _, dup := p.passThrough[op]; dup {
			return nil, apperrors.New(apperrors.ErrCodeInvalidPolicy,
				"operator %q listed as both pass-through and precision-safe", op)
		}
		p.precisionSafe[op] = struct{}{}
	}
	return p, nil
}

// DefaultPolicy returns the built-in operator classification.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(defaultPassThrough, defaultPrecisionSafe)
	if err != nil {
		panic(err) // the built-in lists are disjoint
	}
	return p
}

// PassThrough reports whether the operator kind ignores operand precision.
func (p *Policy) PassThrough(op string) bool {
	_, ok := p.passThrough[op]
	return ok
}

// PrecisionSafe reports whether the operator kind may run in either
// precision without altering the acceptability of its result.
func (p *Policy) PrecisionSafe(op string) bool {
	_, ok := p.precisionSafe[op]
	return ok
}

// Boundary reports whether the operator kind is in neither class.
// Casts are never moved or removed across boundary operators.
func (p *Policy) Boundary(op string) bool {
	return !p.PassThrough(op) && !p.PrecisionSafe(op)
}

// Fingerprint returns a canonical string of the policy's operator lists.
// Policies with identical classifications produce identical fingerprints
// regardless of list order; cache keys are derived from this.
func (p *Policy) Fingerprint() string {
	pass := slices.Sorted(maps.Keys(p.passThrough))
	safe := slices.Sorted(maps.Keys(p.precisionSafe))
	return "pass:" + strings.Join(pass, ",") + "|safe:" + strings.Join(safe, ",")
}

// policyConfig is the TOML schema for policy files:
//
//	pass_through = ["Transpose", "Reshape"]
//	precision_safe = ["MatMul", "Add"]
type policyConfig struct {
	PassThrough   []string `toml:"pass_through"`
	PrecisionSafe []string `toml:"precision_safe"`
}

// LoadPolicy reads a policy from a TOML file. Hardware targets with
// different numeric behavior ship different files; the built-in lists are
// used when no file is given.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrCodeFileNotFound, err, "policy file %s", path)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidPolicy, err, "read policy %s", path)
	}
	var cfg policyConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidPolicy, err, "parse policy %s", path)
	}
	return NewPolicy(cfg.PassThrough, cfg.PrecisionSafe)
}
