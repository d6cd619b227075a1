package rollup

import (
	"sort"

	"go.uber.org/zap"

	"genorollup/internal/logger"
	"genorollup/pkg/domain"
)

// Keeper tags written for each rule.
const (
	tagTwoMarker        = "rule #2 : transgene, 1 EC, 0 MI"
	tagMINonTransgene   = "rule #3 : non-transgene clause"
	tagMITransgene      = "rule #3 : transgene clause"
	tagMIDockingSite    = "rule #3 : docking site clause"
	tagTransgene        = "rule #4 : transgene"
	tagTransgeneEC      = "rule #5 : transgene, 1 EC"
	tagDockingSiteEC    = "rule #6 : docking site, 1 EC"
	tagSinglesNoEC      = "rule #7 : singles, no EC"
	tagSelfExpressing   = "rule #8 : self-expressing single"
	tagDockingIntrinsic = "rule #9 : docking site, 0 EC"
)

// Result is the outcome of one cascade run.
type Result struct {
	// Keepers is sorted by genotype then target and unique per pair.
	Keepers []domain.Keeper

	// Unresolved counts genotypes no rule could attribute.
	Unresolved int
}

// Targets returns the distinct kept targets in ascending order.
func (r Result) Targets() []domain.Key {
	seen := make(map[domain.Key]bool, len(r.Keepers))
	var out []domain.Key
	for _, k := range r.Keepers {
		if !seen[k.Target] {
			seen[k.Target] = true
			out = append(out, k.Target)
		}
	}
	return domain.SortKeys(out)
}

// GenotypesByTarget groups kept genotype keys by target.
func (r Result) GenotypesByTarget() map[domain.Key][]domain.Key {
	out := make(map[domain.Key][]domain.Key)
	for _, k := range r.Keepers {
		out[k.Target] = append(out[k.Target], k.Genotype)
	}
	for t := range out {
		domain.SortKeys(out[t])
	}
	return out
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger stage summaries go to.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver sets the observer that receives claim counts.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// Engine is the causal resolution engine. It is stateless between runs.
type Engine struct {
	settings Settings
	log      *zap.SugaredLogger
	observer Observer
}

// NewEngine returns an engine for settings.
func NewEngine(settings Settings, opts ...Option) *Engine {
	e := &Engine{settings: settings, log: zap.NewNop().Sugar(), observer: NopObserver()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// state is the value threaded through the stage pipeline. Stages never
// modify the state they receive.
type state struct {
	remaining workingSet
	kept      []domain.Keeper
	claimed   map[domain.Key]bool
	reach     map[domain.Key]reach
}

func (s state) clone() state {
	next := state{
		remaining: make(workingSet, len(s.remaining)),
		kept:      append([]domain.Keeper(nil), s.kept...),
		claimed:   make(map[domain.Key]bool, len(s.claimed)),
		reach:     s.reach,
	}
	for g, ls := range s.remaining {
		next.remaining[g] = ls
	}
	for g := range s.claimed {
		next.claimed[g] = true
	}
	return next
}

// keep appends a keeper unless the (genotype, target) pair is already kept.
func (s *state) keep(g, target domain.Key, rule domain.RuleID, tag string) {
	for i := len(s.kept) - 1; i >= 0 && s.kept[i].Genotype == g; i-- {
		if s.kept[i].Target == target {
			return
		}
	}
	s.kept = append(s.kept, domain.Keeper{Genotype: g, Target: target, Rule: rule, Tag: tag})
	s.claimed[g] = true
}

// release drops genotypes from the working set.
func (s *state) release(keys ...domain.Key) {
	for _, g := range keys {
		delete(s.remaining, g)
	}
}

type stage struct {
	name string
	run  func(ix *factIndex, s state) state
}

// Resolve runs the cascade over facts.
func (e *Engine) Resolve(facts *Facts) (Result, error) {
	if facts == nil {
		return Result{}, nil
	}
	ix, err := indexFacts(facts)
	if err != nil {
		return Result{}, err
	}

	s := state{remaining: workingSet{}, claimed: map[domain.Key]bool{}}
	for _, g := range ix.order {
		if ls := ix.links[g]; len(ls) > 0 {
			s.remaining[g] = ls
		}
	}

	for _, st := range e.stages() {
		before := len(s.kept)
		s = st.run(ix, s)
		e.log.Debugw("stage complete",
			"stage", st.name,
			"keepers_added", len(s.kept)-before,
			logger.FieldGenotypes, len(s.remaining),
			"links", s.remaining.rows(),
		)
	}

	kept := e.cleanup(s.kept)
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Genotype != kept[j].Genotype {
			return kept[i].Genotype < kept[j].Genotype
		}
		return kept[i].Target < kept[j].Target
	})

	resolved := make(map[domain.Key]bool, len(kept))
	perRule := make(map[domain.RuleID]int)
	for _, k := range kept {
		resolved[k.Genotype] = true
		perRule[k.Rule]++
	}
	res := Result{Keepers: kept, Unresolved: len(ix.order) - len(resolved)}

	rules := make([]domain.RuleID, 0, len(perRule))
	for r := range perRule {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i] < rules[j] })
	for _, r := range rules {
		e.observer.KeepersClaimed(r, perRule[r])
		e.log.Infow("rule claimed keepers", logger.FieldRule, r.String(), "keepers", perRule[r])
	}
	e.observer.GenotypesUnresolved(res.Unresolved)
	e.log.Infow("cascade complete",
		"variant", e.settings.variant.Name,
		logger.FieldGenotypes, len(ix.order),
		"keepers", len(kept),
		"unresolved", res.Unresolved,
	)
	return res, nil
}

func (e *Engine) stages() []stage {
	st := []stage{
		{"naturally simple", e.naturallySimple},
		{"working set", e.buildWorkingSet},
		{"strip reporter transgenes", e.stripReporters},
		{"strip conditional recombinase", e.stripRecombinase},
		{"strip conditional wild type", e.stripConditionalWildType},
		{"strip transactivators", e.stripTransactivators},
		{"strip wild type", e.stripWildType},
	}
	if !e.settings.variant.MarkerRules {
		return st
	}
	return append(st,
		stage{"reachability sets", e.collectReach},
		stage{"two-marker transgene", e.twoMarkerTransgene},
		stage{"mutation involves", e.mutationInvolves},
		stage{"transgene", e.transgenes},
		stage{"docking site", e.dockingSites},
		stage{"remaining singles", e.remainingSingles},
	)
}

// cleanup drops keepers that point at a null target or, for the marker
// variant, at a permissive docking site.
func (e *Engine) cleanup(kept []domain.Keeper) []domain.Keeper {
	out := make([]domain.Keeper, 0, len(kept))
	for _, k := range kept {
		if k.Target.IsNull() {
			continue
		}
		if e.settings.variant.DropPermissiveSites {
			if site, ok := e.settings.DockingSite(k.Target); ok && site.Permissive {
				continue
			}
		}
		out = append(out, k)
	}
	return out
}
