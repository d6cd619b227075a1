// Package verify cross-checks derived annotations against the genotype
// annotations their provenance properties point at.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"genorollup/internal/logger"
	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
)

// DefaultChunkSize is the number of genotypes whose source annotations are
// loaded at once.
const DefaultChunkSize = 200

// Report summarizes a verification run. Mismatches includes NoSource and
// MissingSource.
type Report struct {
	Targets       int `json:"targets"`
	Rows          int `json:"rows"`
	Checked       int `json:"checked"`
	Mismatches    int `json:"mismatches"`
	NoSource      int `json:"no_source"`
	MissingSource int `json:"missing_source"`
}

// OK reports whether every derived annotation matched its source.
func (r Report) OK() bool { return r.Mismatches == 0 }

// Checker verifies derived rows target by target. Rows are buffered until
// their genotypes fill a chunk, then the chunk's source annotations are
// loaded with one Source call. Checker is not safe for concurrent use.
type Checker struct {
	source         rollup.Source
	lookups        *rollup.Lookups
	provenance     domain.Key
	provenanceName string
	chunk          int
	log            *zap.SugaredLogger

	pending   []pendingTarget
	genotypes map[domain.Key]bool
	report    Report
}

type pendingTarget struct {
	key       domain.Key
	genotypes []domain.Key
	rows      []domain.DerivedAnnotation
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the checker's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Checker) { c.log = logger.Component(l, "verify") }
}

// WithChunkSize overrides DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.chunk = n
		}
	}
}

// NewChecker returns a checker that loads source annotations from source and
// renders their keys through lookups, the same tables the derived rows were
// rendered with.
func NewChecker(source rollup.Source, settings rollup.Settings, lookups *rollup.Lookups, opts ...Option) *Checker {
	if lookups == nil {
		lookups = rollup.NewLookups()
	}
	c := &Checker{
		source:     source,
		lookups:    lookups,
		provenance: settings.ProvenanceTerm(),
		chunk:      DefaultChunkSize,
		log:        logger.Nop(),
		genotypes:  make(map[domain.Key]bool),
	}
	c.provenanceName, _ = lookups.PropertyNames.Get(c.provenance)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddRecord queues a cursor record for verification.
func (c *Checker) AddRecord(ctx context.Context, rec rollup.TargetRecord) error {
	return c.Add(ctx, rec.Key(), rec.Genotypes(), rec.Annotations())
}

// Add queues the derived rows of target, whose kept genotypes are given.
// It verifies the buffered targets once they reach the chunk size.
func (c *Checker) Add(ctx context.Context, target domain.Key, genotypes []domain.Key, rows []domain.DerivedAnnotation) error {
	c.report.Targets++
	c.report.Rows += len(rows)
	c.pending = append(c.pending, pendingTarget{key: target, genotypes: genotypes, rows: rows})
	for _, g := range genotypes {
		c.genotypes[g] = true
	}
	if len(c.genotypes) >= c.chunk {
		return c.flush(ctx)
	}
	return nil
}

// Finish verifies any buffered targets and returns the report.
func (c *Checker) Finish(ctx context.Context) (Report, error) {
	if err := c.flush(ctx); err != nil {
		return c.report, err
	}
	c.log.Infow("verification finished",
		"targets", c.report.Targets,
		"rows", c.report.Rows,
		"checked", c.report.Checked,
		"mismatches", c.report.Mismatches,
	)
	return c.report, nil
}

func (c *Checker) flush(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	keys := make([]domain.Key, 0, len(c.genotypes))
	for g := range c.genotypes {
		keys = append(keys, g)
	}
	domain.SortKeys(keys)

	bundle, err := c.source.Annotations(ctx, keys)
	if err != nil {
		return errors.Wrapf(err, "load source annotations for %d genotypes", len(keys))
	}
	sources := indexSources(bundle, c.provenance)

	found := 0
	for _, t := range c.pending {
		found += c.compareTarget(t, sources)
	}
	if found > 0 {
		c.log.Debugw("chunk mismatches", "mismatches", found, "genotypes", len(keys))
	}
	c.report.Mismatches += found

	c.pending = nil
	c.genotypes = make(map[domain.Key]bool)
	return nil
}

// derivedGroup gathers the rows one target derived from one source
// annotation.
type derivedGroup struct {
	term       string
	qualifier  string
	evidence   map[string]bool
	properties map[string]bool
	conflict   bool
	malformed  bool
}

func (c *Checker) compareTarget(t pendingTarget, sources map[domain.Key]*sourceAnnotation) int {
	mismatches := 0
	groups := make(map[domain.Key]*derivedGroup)
	var order []domain.Key
	for _, d := range t.rows {
		key, ok := c.sourceKey(d)
		if !ok {
			c.report.NoSource++
			mismatches++
			c.log.Infow("mismatch: no source annotation", "target", t.key, "evidence", d.Evidence)
			continue
		}
		g, seen := groups[key]
		if !seen {
			g = &derivedGroup{
				term:       d.TermID,
				qualifier:  d.Qualifier,
				evidence:   make(map[string]bool),
				properties: make(map[string]bool),
			}
			groups[key] = g
			order = append(order, key)
		}
		if g.term != d.TermID || g.qualifier != d.Qualifier {
			g.conflict = true
		}
		g.evidence[evidenceTuple(d.EvidenceCode, d.ReferenceID, d.InferredFrom)] = true
		clauses, err := parseProperties(d.Properties)
		if err != nil {
			g.malformed = true
			continue
		}
		for _, cl := range clauses {
			if cl.name != c.provenanceName {
				g.properties[cl.tuple()] = true
			}
		}
	}

	domain.SortKeys(order)
	for _, key := range order {
		c.report.Checked++
		src, ok := sources[key]
		if !ok {
			c.report.MissingSource++
			mismatches++
			c.log.Infow("mismatch: missing source annotation", "target", t.key, "source", key)
			continue
		}
		if reason := c.match(groups[key], src); reason != "" {
			mismatches++
			c.log.Infow("mismatch", "target", t.key, "source", key, "reason", reason)
		}
	}
	return mismatches
}

// sourceKey reads the annotation key recorded by the row's provenance
// property.
func (c *Checker) sourceKey(d domain.DerivedAnnotation) (domain.Key, bool) {
	if d.Provenance.Term != c.provenance || d.Provenance.Evidence != d.Evidence {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(d.Provenance.Value), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return domain.Key(v), true
}

func (c *Checker) match(g *derivedGroup, src *sourceAnnotation) string {
	term, _ := c.lookups.Terms.Get(src.annotation.Term)
	qualifier := ""
	if !src.annotation.Qualifier.IsNull() {
		qualifier, _ = c.lookups.Qualifiers.Get(src.annotation.Qualifier)
	}
	if g.malformed {
		return "malformed property string"
	}
	if g.conflict || g.term != term || g.qualifier != qualifier {
		return fmt.Sprintf("term/qualifier %s/%s, source %s/%s", g.term, g.qualifier, term, qualifier)
	}
	for _, ev := range src.evidence {
		code, _ := c.lookups.EvidenceCodes.Get(ev.EvidenceTerm)
		ref, _ := c.lookups.References.Get(ev.Reference)
		inferred := ""
		if ev.InferredFrom != nil {
			inferred = *ev.InferredFrom
		}
		if t := evidenceTuple(code, ref, inferred); !g.evidence[t] {
			return "evidence " + t + " not carried"
		}
	}
	for _, cl := range c.sourceClauses(src) {
		if t := cl.tuple(); !g.properties[t] {
			return "property " + t + " not carried"
		}
	}
	return ""
}

// sourceClauses renders the source annotation's properties the way the
// load file encodes them: one stanza per run of equal stanza numbers within
// an evidence row, counted from 1.
func (c *Checker) sourceClauses(src *sourceAnnotation) []clause {
	var out []clause
	for _, ev := range src.evidence {
		props := src.properties[ev.Key]
		sort.SliceStable(props, func(i, j int) bool {
			if props[i].Stanza != props[j].Stanza {
				return props[i].Stanza < props[j].Stanza
			}
			return props[i].Sequence < props[j].Sequence
		})
		stanza := 0
		for i, p := range props {
			if i == 0 || p.Stanza != props[i-1].Stanza {
				stanza++
			}
			name, ok := c.lookups.PropertyNames.Get(p.Term)
			if !ok {
				name = "#" + strconv.FormatInt(int64(p.Term), 10)
			}
			out = append(out, clause{stanza: stanza, name: name, value: p.Value})
		}
	}
	return out
}

type sourceAnnotation struct {
	annotation domain.Annotation
	evidence   []domain.Evidence

	// properties are keyed by evidence, without provenance rows.
	properties map[domain.Key][]domain.Property
}

func indexSources(b *rollup.Bundle, provenance domain.Key) map[domain.Key]*sourceAnnotation {
	out := make(map[domain.Key]*sourceAnnotation)
	if b == nil {
		return out
	}
	for _, a := range b.Annotations {
		if _, ok := out[a.Key]; !ok {
			out[a.Key] = &sourceAnnotation{annotation: a, properties: make(map[domain.Key][]domain.Property)}
		}
	}
	owner := make(map[domain.Key]*sourceAnnotation, len(b.Evidence))
	for _, e := range b.Evidence {
		if s, ok := out[e.Annotation]; ok {
			s.evidence = append(s.evidence, e)
			owner[e.Key] = s
		}
	}
	for _, p := range b.Properties {
		if p.Term == provenance {
			continue
		}
		if s, ok := owner[p.Evidence]; ok {
			s.properties[p.Evidence] = append(s.properties[p.Evidence], p)
		}
	}
	for _, s := range out {
		sort.Slice(s.evidence, func(i, j int) bool { return s.evidence[i].Key < s.evidence[j].Key })
	}
	return out
}

func evidenceTuple(code, ref, inferred string) string {
	return code + "|" + ref + "|" + inferred
}

// Property string separators written by the materializer.
const (
	clauseSep = "&=&"
	withinSep = "&==&"
	stanzaSep = "&===&"
)

// clause is one name&=&value pair of an encoded property string. stanza
// counts from 1 in encoding order.
type clause struct {
	stanza int
	name   string
	value  string
}

func (c clause) tuple() string {
	return fmt.Sprintf("%d|%s|%s", c.stanza, c.name, c.value)
}

// parseProperties splits an encoded property string into its clauses.
func parseProperties(encoded string) ([]clause, error) {
	if encoded == "" {
		return nil, nil
	}
	var out []clause
	for i, stanza := range strings.Split(encoded, stanzaSep) {
		for _, pair := range strings.Split(stanza, withinSep) {
			name, value, ok := strings.Cut(pair, clauseSep)
			if !ok || name == "" {
				return nil, errors.Newf("property clause %q has no name", pair)
			}
			out = append(out, clause{stanza: i + 1, name: name, value: value})
		}
	}
	return out, nil
}
