package flags

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openboard/modflags/sortedstore"
)

// FilterKind identifies one of the core filter dimensions. Additional
// filters registered by extensions use FilterCustom with a name.
type FilterKind string

const (
	FilterType      FilterKind = "type"
	FilterState     FilterKind = "state"
	FilterReporter  FilterKind = "reporterId"
	FilterAssignee  FilterKind = "assignee"
	FilterTargetUID FilterKind = "targetUid"
	FilterCid       FilterKind = "cid"
	FilterQuick     FilterKind = "quick"
	FilterPage      FilterKind = "page"
	FilterPerPage   FilterKind = "perPage"
	FilterCustom    FilterKind = "custom"
)

// Filter is one criterion of a list query. A scalar Value lands in the
// AND-group (every result must match); a Values sequence lands in the
// OR-group (any one suffices). Name is only read for FilterCustom.
type Filter struct {
	Kind   FilterKind
	Name   string
	Value  string
	Values []string
}

// FilterQuery accumulates the combination plan while filters are resolved.
// Handlers append index keys to And/Or or adjust pagination.
type FilterQuery struct {
	CallerUID string
	And       []string
	Or        []string
	Page      int
	PerPage   int
}

// FilterHandler resolves one filter into index keys (or pagination settings)
// on the query under assembly.
type FilterHandler func(q *FilterQuery, f Filter)

// FilterRegistry maps filter kinds (and custom filter names) to handlers. It
// is constructed explicitly and passed to the engine rather than living in
// shared module state, so deployments can extend it at startup.
type FilterRegistry struct {
	handlers map[FilterKind]FilterHandler
	custom   map[string]FilterHandler
}

// dimensionHandler builds the usual handler shape: scalar values select one
// index for the AND-group, sequences contribute one index each to the
// OR-group.
func dimensionHandler(keyFor func(string) string) FilterHandler {
	return func(q *FilterQuery, f Filter) {
		if len(f.Values) > 0 {
			for _, v := range f.Values {
				q.Or = append(q.Or, keyFor(v))
			}
			return
		}
		if f.Value != "" {
			q.And = append(q.And, keyFor(f.Value))
		}
	}
}

func NewFilterRegistry() *FilterRegistry {
	r := &FilterRegistry{
		handlers: make(map[FilterKind]FilterHandler),
		custom:   make(map[string]FilterHandler),
	}
	r.handlers[FilterType] = dimensionHandler(byTypeKey)
	r.handlers[FilterState] = dimensionHandler(func(v string) string { return byStateKey(State(v)) })
	r.handlers[FilterReporter] = dimensionHandler(byReporterKey)
	r.handlers[FilterAssignee] = dimensionHandler(byAssigneeKey)
	r.handlers[FilterTargetUID] = dimensionHandler(byTargetUIDKey)
	r.handlers[FilterCid] = dimensionHandler(byCidKey)
	r.handlers[FilterQuick] = func(q *FilterQuery, f Filter) {
		// "mine" narrows to flags ever assigned to the caller
		if f.Value == "mine" && q.CallerUID != "" {
			q.And = append(q.And, byAssigneeKey(q.CallerUID))
		}
	}
	r.handlers[FilterPage] = func(q *FilterQuery, f Filter) {
		if n, err := strconv.Atoi(f.Value); err == nil {
			q.Page = n
		}
	}
	r.handlers[FilterPerPage] = func(q *FilterQuery, f Filter) {
		if n, err := strconv.Atoi(f.Value); err == nil {
			q.PerPage = n
		}
	}
	return r
}

// Register installs or replaces the handler for a core filter kind.
func (r *FilterRegistry) Register(kind FilterKind, h FilterHandler) {
	r.handlers[kind] = h
}

// RegisterCustom installs a handler for an extension filter name.
func (r *FilterRegistry) RegisterCustom(name string, h FilterHandler) {
	r.custom[name] = h
}

func (r *FilterRegistry) resolve(logger *slog.Logger, q *FilterQuery, f Filter) {
	if f.Kind == FilterCustom {
		h, ok := r.custom[f.Name]
		if !ok {
			// unknown filters from external collaborators are skipped,
			// never a hard error
			logger.Warn("ignoring unknown flag filter", "name", f.Name)
			return
		}
		h(q, f)
		return
	}
	h, ok := r.handlers[f.Kind]
	if !ok {
		logger.Warn("ignoring unknown flag filter", "kind", f.Kind)
		return
	}
	h(q, f)
}

// Plan is the assembled index-combination plan, exposed to OnPlan hooks
// before execution. And-members are intersected; Or-members are unioned; when
// both are present a flag must appear in the intersection and in at least one
// Or index, ordered by the higher of its two aggregated scores.
type Plan struct {
	And []string
	Or  []string
}

type ListRequest struct {
	CallerUID string
	Filters   []Filter
	Page      int
	PerPage   int
}

type ListResult struct {
	Flags     []*FlagSummary
	Page      int
	PerPage   int
	PageCount int
	// Total counts index candidates before hydration; entries that fail to
	// hydrate are dropped from Flags but still counted here.
	Total int
}

// List answers a paginated, multi-dimension filter query. With no filters it
// returns everything, newest first.
func (e *Engine) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	start := time.Now()
	defer func() {
		listDuration.Observe(time.Since(start).Seconds())
	}()

	registry := e.Filters
	if registry == nil {
		registry = NewFilterRegistry()
	}
	q := &FilterQuery{
		CallerUID: req.CallerUID,
		Page:      req.Page,
		PerPage:   req.PerPage,
	}
	for _, f := range req.Filters {
		registry.resolve(e.Logger, q, f)
	}

	plan := &Plan{And: q.And, Or: q.Or}
	e.firePlanHooks(ctx, plan)

	candidates, err := e.executePlan(ctx, plan)
	if err != nil {
		return nil, err
	}

	// pagination: 1-based page, clamped; perPage defaulted when unset
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 {
		perPage = e.perPageDefault()
	}
	total := len(candidates)
	pageCount := (total + perPage - 1) / perPage

	lo := (page - 1) * perPage
	hi := lo + perPage
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}
	pageMembers := candidates[lo:hi]

	ids := make([]int64, 0, len(pageMembers))
	for _, m := range pageMembers {
		id, err := parseID(m.Value)
		if err != nil {
			e.Logger.Warn("skipping non-numeric flag index member", "member", m.Value)
			continue
		}
		ids = append(ids, id)
	}

	res := &ListResult{
		Flags:     e.hydrateSummaries(ctx, ids),
		Page:      page,
		PerPage:   perPage,
		PageCount: pageCount,
		Total:     total,
	}
	e.fireListHooks(ctx, res)
	return res, nil
}

// executePlan turns the AND/OR index groups into an ordered candidate list.
// The two group computations read disjoint inputs and run concurrently.
func (e *Engine) executePlan(ctx context.Context, plan *Plan) ([]sortedstore.Member, error) {
	if len(plan.And) == 0 && len(plan.Or) == 0 {
		return e.Store.RangeDesc(ctx, keyChronological, 0, -1)
	}

	var andRes, orRes []sortedstore.Member
	haveAnd := len(plan.And) > 0
	haveOr := len(plan.Or) > 0

	g, gctx := errgroup.WithContext(ctx)
	if haveAnd {
		g.Go(func() error {
			var err error
			if len(plan.And) == 1 {
				andRes, err = e.Store.RangeDesc(gctx, plan.And[0], 0, -1)
			} else {
				andRes, err = e.Store.Intersect(gctx, plan.And, 0, -1)
			}
			return err
		})
	}
	if haveOr {
		g.Go(func() error {
			var err error
			orRes, err = e.Store.Union(gctx, plan.Or, 0, -1)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch {
	case haveAnd && haveOr:
		// flags must satisfy the AND criteria and at least one OR
		// criterion; each survivor keeps the max of its two aggregated
		// scores so the newest qualifying event decides the ordering
		orScore := make(map[string]float64, len(orRes))
		for _, m := range orRes {
			orScore[m.Value] = m.Score
		}
		out := make([]sortedstore.Member, 0, len(andRes))
		for _, m := range andRes {
			s, ok := orScore[m.Value]
			if !ok {
				continue
			}
			if m.Score > s {
				s = m.Score
			}
			out = append(out, sortedstore.Member{Value: m.Value, Score: s})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Score != out[j].Score {
				return out[i].Score > out[j].Score
			}
			return out[i].Value > out[j].Value
		})
		return out, nil
	case haveAnd:
		return andRes, nil
	default:
		return orRes, nil
	}
}
