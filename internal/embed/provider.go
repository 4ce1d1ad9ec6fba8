package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	amanerrors "github.com/contextmemory/workmem/internal/errors"
	"github.com/contextmemory/workmem/internal/fingerprint"
)

// DefaultPerSlotTimeout and DefaultTotalTimeout are the timeout discipline
// the core enforces around the embedding provider: any slot failure or
// total timeout fails the whole embedding, never a partial fingerprint.
const (
	DefaultPerSlotTimeout = 500 * time.Millisecond
	DefaultTotalTimeout   = 1000 * time.Millisecond
)

// EmbedderOutput is the complete result of embedding one piece of content:
// the 13-slot fingerprint plus per-component latency and model identity.
type EmbedderOutput struct {
	Fingerprint    fingerprint.Fingerprint
	TotalLatency   time.Duration
	PerSlotLatency [fingerprint.NumSlots]time.Duration
	ModelIDs       [fingerprint.NumSlots]string
}

// Provider is the external embedding-model interface the core consumes.
// Implementations are treated as a black box: the core only relies on
// this contract, never on how a fingerprint is actually produced.
type Provider interface {
	EmbedAll(ctx context.Context, content string) (EmbedderOutput, error)
	EmbedBatchAll(ctx context.Context, contents []string) ([]EmbedderOutput, error)
	ModelIDs() [fingerprint.NumSlots]string
	IsReady() bool
	HealthStatus() [fingerprint.NumSlots]bool
}

// slotGenerator produces one slot's data for a content string. StaticProvider
// wires one of these per slot, each a hash-based generator seeded by slot
// name so distinct slots never collide on identical hashes.
type slotGenerator func(content string) (fingerprint.SlotData, error)

// StaticProvider is a deterministic, dependency-free stand-in for a real
// 13-model embedding provider, treated as an out-of-scope black box. It
// generates each slot with a hash-based approach generalized from one
// 256-D vector to the 13 heterogeneous fingerprint slots. Used by tests
// and as the zero-dependency fallback when no real provider is
// configured.
type StaticProvider struct {
	perSlotTimeout time.Duration
	totalTimeout   time.Duration
	generators     [fingerprint.NumSlots]slotGenerator
	modelIDs       [fingerprint.NumSlots]string
	breaker        *amanerrors.CircuitBreaker
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider builds a StaticProvider with one hash-based generator
// per slot, each honoring its declared representation and dimension.
func NewStaticProvider() *StaticProvider {
	p := &StaticProvider{
		perSlotTimeout: DefaultPerSlotTimeout,
		totalTimeout:   DefaultTotalTimeout,
		breaker:        amanerrors.NewCircuitBreaker("embedding-provider"),
	}
	for _, spec := range fingerprint.SlotSpecs {
		spec := spec
		p.modelIDs[spec.Slot] = "static-hash/" + spec.Name
		switch spec.Rep {
		case fingerprint.RepDense:
			p.generators[spec.Slot] = denseGenerator(spec)
		case fingerprint.RepSparse:
			p.generators[spec.Slot] = sparseGenerator(spec)
		case fingerprint.RepTokenLevel:
			p.generators[spec.Slot] = tokenGenerator(spec)
		}
	}
	return p
}

// WithTimeouts overrides the per-slot and total timeouts (config surface
// §6.4's embedding timeout options).
func (p *StaticProvider) WithTimeouts(perSlot, total time.Duration) *StaticProvider {
	p.perSlotTimeout = perSlot
	p.totalTimeout = total
	return p
}

// denseGenerator hashes tokens and character n-grams into buckets of a
// dense vector at spec.Dimension, keyed by the slot name so each slot
// hashes differently, and normalizes the result.
func denseGenerator(spec fingerprint.SlotSpec) slotGenerator {
	seed := spec.Name
	dim := spec.Dimension
	return func(content string) (fingerprint.SlotData, error) {
		trimmed := strings.TrimSpace(content)
		vec := make(fingerprint.DenseVector, dim)
		if trimmed == "" {
			return vec, nil
		}
		tokens := filterStopWords(tokenize(trimmed))
		for _, tok := range tokens {
			idx := hashToIndex(seed+"\x00"+tok, dim)
			vec[idx] += tokenWeight
		}
		ngrams := extractNgrams(normalizeForNgrams(trimmed), ngramSize)
		for _, ng := range ngrams {
			idx := hashToIndex(seed+"\x00"+ng, dim)
			vec[idx] += ngramWeight
		}
		normalized := normalizeVector(vec)
		out := make(fingerprint.DenseVector, dim)
		copy(out, normalized)
		return out, nil
	}
}

// sparseGenerator hashes tokens into a bounded number of vocabulary
// positions under spec.Dimension (the declared vocab size), sorted-unique
// as the fingerprint invariants require.
func sparseGenerator(spec fingerprint.SlotSpec) slotGenerator {
	seed := spec.Name
	vocab := spec.Dimension
	return func(content string) (fingerprint.SlotData, error) {
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return fingerprint.SparseVector{}, nil
		}
		tokens := filterStopWords(tokenize(trimmed))
		activations := make(map[uint16]float32)
		for _, tok := range tokens {
			idx := uint16(hashToIndex(seed+"\x00"+tok, vocab))
			activations[idx] += 1.0
		}
		return sortedSparseVector(activations), nil
	}
}

func sortedSparseVector(activations map[uint16]float32) fingerprint.SparseVector {
	if len(activations) == 0 {
		return fingerprint.SparseVector{}
	}
	indices := make([]uint16, 0, len(activations))
	for idx := range activations {
		indices = append(indices, idx)
	}
	// simple insertion sort is fine: vocab hits per item are small (<< 1000)
	for i := 1; i < len(indices); i++ {
		for j := i; j > 0 && indices[j-1] > indices[j]; j-- {
			indices[j-1], indices[j] = indices[j], indices[j-1]
		}
	}
	values := make([]float32, len(indices))
	var norm float32
	for i, idx := range indices {
		values[i] = activations[idx]
		norm += values[i] * values[i]
	}
	if norm > 0 {
		inv := float32(1.0 / sqrt32(norm))
		for i := range values {
			values[i] *= inv
		}
	}
	return fingerprint.SparseVector{Indices: indices, Values: values}
}

func sqrt32(x float32) float32 {
	// Newton's method, good enough for normalizing small counts; avoids a
	// math.Sqrt round-trip through float64 on this hot path.
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 8; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// tokenGenerator produces one token vector per whitespace-delimited word
// (capped, to bound memory per §5's token-level ceiling), each vector a
// hash-based dense embedding at spec.Dimension.
func tokenGenerator(spec fingerprint.SlotSpec) slotGenerator {
	const maxTokens = 256
	dim := spec.Dimension
	dg := denseGenerator(fingerprint.SlotSpec{Name: spec.Name, Dimension: dim})
	return func(content string) (fingerprint.SlotData, error) {
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return fingerprint.TokenMatrix{}, nil
		}
		words := strings.Fields(trimmed)
		if len(words) > maxTokens {
			words = words[:maxTokens]
		}
		out := make(fingerprint.TokenMatrix, 0, len(words))
		for _, w := range words {
			data, err := dg(w)
			if err != nil {
				return nil, err
			}
			out = append(out, []float32(data.(fingerprint.DenseVector)))
		}
		return out, nil
	}
}

// EmbedAll generates a complete 13-slot fingerprint for content, enforcing
// the per-slot and total timeout discipline of §4.5: any slot failure or
// total-timeout breach fails the whole embedding, never a partial
// fingerprint (ValidationError/EmbeddingError, never silently dropped).
func (p *StaticProvider) EmbedAll(ctx context.Context, content string) (EmbedderOutput, error) {
	if p.breaker != nil && !p.breaker.Allow() {
		return EmbedderOutput{}, amanerrors.New(amanerrors.ErrCodeEmbeddingFailed, "embedding provider circuit open", nil)
	}

	start := time.Now()
	totalCtx, cancel := context.WithTimeout(ctx, p.totalTimeout)
	defer cancel()

	var out EmbedderOutput
	g, gctx := errgroup.WithContext(totalCtx)

	for _, spec := range fingerprint.SlotSpecs {
		spec := spec
		g.Go(func() error {
			slotStart := time.Now()
			slotCtx, slotCancel := context.WithTimeout(gctx, p.perSlotTimeout)
			defer slotCancel()

			type result struct {
				data fingerprint.SlotData
				err  error
			}
			resCh := make(chan result, 1)
			go func() {
				data, err := p.generators[spec.Slot](content)
				resCh <- result{data, err}
			}()

			select {
			case <-slotCtx.Done():
				if p.breaker != nil {
					p.breaker.RecordFailure()
				}
				return amanerrors.New(amanerrors.ErrCodeEmbedTimeout, fmt.Sprintf("slot %s timed out", spec.Name), slotCtx.Err()).
					WithDetail("slot", spec.Name)
			case r := <-resCh:
				if r.err != nil {
					if p.breaker != nil {
						p.breaker.RecordFailure()
					}
					return amanerrors.New(amanerrors.ErrCodeSlotFailed, fmt.Sprintf("slot %s generation failed", spec.Name), r.err).
						WithDetail("slot", spec.Name)
				}
				out.Fingerprint.Slots[spec.Slot] = r.data
				out.PerSlotLatency[spec.Slot] = time.Since(slotStart)
				out.ModelIDs[spec.Slot] = p.modelIDs[spec.Slot]
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		return EmbedderOutput{}, amanerrors.Wrap(amanerrors.ErrCodeEmbedPartial, err)
	}

	if errs := fingerprint.Validate(out.Fingerprint); len(errs) > 0 {
		if p.breaker != nil {
			p.breaker.RecordFailure()
		}
		return EmbedderOutput{}, fingerprint.ValidateErr(out.Fingerprint)
	}

	if p.breaker != nil {
		p.breaker.RecordSuccess()
	}
	out.TotalLatency = time.Since(start)
	return out, nil
}

// EmbedBatchAll embeds each content concurrently under one errgroup, the
// same discipline EmbedAll uses per slot: the first item's failure cancels
// the context of the items still running and fails the whole batch (no
// partial results are returned).
func (p *StaticProvider) EmbedBatchAll(ctx context.Context, contents []string) ([]EmbedderOutput, error) {
	out := make([]EmbedderOutput, len(contents))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range contents {
		i, c := i, c
		g.Go(func() error {
			o, err := p.EmbedAll(gctx, c)
			if err != nil {
				return fmt.Errorf("embed content %d: %w", i, err)
			}
			out[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *StaticProvider) ModelIDs() [fingerprint.NumSlots]string { return p.modelIDs }

func (p *StaticProvider) IsReady() bool { return true }

func (p *StaticProvider) HealthStatus() [fingerprint.NumSlots]bool {
	var h [fingerprint.NumSlots]bool
	for i := range h {
		h[i] = true
	}
	return h
}
