package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/linkboard/linkboard/internal/app/repository"
)

var (
	// ErrAliasTaken signals that a requested custom alias collides with a
	// live or retired code.
	ErrAliasTaken = errors.New("alias already taken")
	// ErrInvalidAlias signals that a custom alias violates the allowed
	// charset or length bounds.
	ErrInvalidAlias = errors.New("invalid alias")
	// ErrGenerationExhausted signals that random allocation kept
	// colliding. Effectively unreachable at sane corpus sizes, but
	// handled rather than assumed away.
	ErrGenerationExhausted = errors.New("short code generation exhausted")
)

// codeAlphabet is base62 minus the ambiguous glyphs 0/O/1/l/I, so codes
// survive being read aloud or retyped from print.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const maxAllocateAttempts = 5

// CodeAllocator hands out unique short codes: validated custom aliases or
// random codes from the unambiguous alphabet. Uniqueness is ultimately
// guaranteed by the store's atomic insert; the allocator only pre-screens.
type CodeAllocator struct {
	repo      repository.LinkRepository
	length    int
	aliasMin  int
	aliasMax  int
	mu        sync.RWMutex
	seen      *bloom.BloomFilter
}

// AllocatorConfig bounds code and alias shapes.
type AllocatorConfig struct {
	CodeLength     int
	AliasMinLength int
	AliasMaxLength int
}

// NewCodeAllocator builds an allocator with an empty bloom filter sized
// for a million codes at a 0.1% false-positive rate.
func NewCodeAllocator(repo repository.LinkRepository, cfg AllocatorConfig) *CodeAllocator {
	length := cfg.CodeLength
	if length < 4 {
		length = 7
	}
	aliasMin := cfg.AliasMinLength
	if aliasMin <= 0 {
		aliasMin = 3
	}
	aliasMax := cfg.AliasMaxLength
	if aliasMax < aliasMin {
		aliasMax = 32
	}
	return &CodeAllocator{
		repo:     repo,
		length:   length,
		aliasMin: aliasMin,
		aliasMax: aliasMax,
		seen:     bloom.NewWithEstimates(1_000_000, 0.001),
	}
}

// Warm seeds the bloom filter with every live and retired code. Called at
// startup; resolution and allocation both consult the filter afterwards.
func (a *CodeAllocator) Warm(ctx context.Context) error {
	codes, err := a.repo.AllCodes(ctx)
	if err != nil {
		return fmt.Errorf("warm code filter: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, code := range codes {
		a.seen.AddString(code)
	}
	return nil
}

// Observe records a newly inserted code in the filter.
func (a *CodeAllocator) Observe(code string) {
	a.mu.Lock()
	a.seen.AddString(code)
	a.mu.Unlock()
}

// MightExist reports whether code could be a known short code. False
// means definitely unknown, which lets the resolution path answer 404
// without touching the cache or the store.
func (a *CodeAllocator) MightExist(code string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.seen.TestString(code)
}

// Allocate returns a short code ready for insertion. With a custom alias
// it validates shape and collision; without one it draws random codes,
// retrying a bounded number of times on collision. The returned code has
// only been pre-screened: the caller's Create must still treat ErrCodeTaken
// as the authoritative collision signal.
func (a *CodeAllocator) Allocate(ctx context.Context, customAlias string) (string, error) {
	if customAlias != "" {
		if !a.validAlias(customAlias) {
			return "", ErrInvalidAlias
		}
		exists, err := a.repo.CodeExists(ctx, customAlias)
		if err != nil {
			return "", fmt.Errorf("check alias: %w", err)
		}
		if exists {
			return "", ErrAliasTaken
		}
		return customAlias, nil
	}

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := randomCode(a.length)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		exists, err := a.repo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if exists {
			continue
		}
		return code, nil
	}
	return "", ErrGenerationExhausted
}

func (a *CodeAllocator) validAlias(alias string) bool {
	if len(alias) < a.aliasMin || len(alias) > a.aliasMax {
		return false
	}
	for _, r := range alias {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func randomCode(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
