package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-scout/internal/dedup"
	"github.com/sells-group/lead-scout/internal/dork"
	"github.com/sells-group/lead-scout/internal/metrics"
	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
	"github.com/sells-group/lead-scout/internal/scorer"
	"github.com/sells-group/lead-scout/internal/search"
)

// Rejection reasons decided by the runner. Validation reasons come from
// the validate package.
const (
	ReasonBelowMinScore    = "below_min_score"
	ReasonNotCandidate     = "not_candidate"
	ReasonSourceNotAllowed = "source_not_allowed"
	ReasonDuplicatePhone   = "duplicate_phone"
	ReasonDuplicateEmail   = "duplicate_email"
	ReasonDuplicateLead    = "duplicate_lead"
	ReasonBlockedPage      = "blocked_page"
	ReasonExtractFailed    = "extract_failed"
	ReasonStoreError       = "store_error"
	ReasonInternalError    = "internal_error"
)

// target is a search hit whose normalized URL this run has claimed.
type target struct {
	model.SearchResult
	norm string
}

// urlResult is what one worker produced for one URL. Workers never touch
// the query outcome; runQuery merges results after the group joins.
type urlResult struct {
	host      string
	norm      string
	abandoned bool
	fetched   bool
	fetchErr  error
	kind      string
	found     bool
	kept      bool
	reject    string
	lead      *model.Lead
	dropped   *resilience.DroppedURL
	panicked  bool
}

// runQuery executes one selected dork end to end.
func (r *Runner) runQuery(ctx context.Context, runID string, sel dork.Selection, p Params) (qo *metrics.QueryOutcome) {
	qo = metrics.NewQueryOutcome(sel.Dork.Text, sel.Source)
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", runID), zap.String("query", sel.Dork.Text))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline: recovered panic in query", zap.Any("panic", rec), zap.Stack("stack"))
			qo.Panics++
			qo.Dork.Failed = true
			qo.Reject(ReasonInternalError)
		}
	}()

	out, err := r.searcher.Search(ctx, search.Query{
		Text:         sel.Dork.Text,
		SourceHint:   sel.Source,
		DateRestrict: p.DateRestrict,
	})
	if err != nil {
		qo.Dork.Failed = true
		log.Warn("pipeline: query failed", zap.Error(err))
		return qo
	}
	qo.Fired, qo.RateLimited, qo.Cached = out.Fired, out.RateLimited, out.Cached
	qo.Dork.SerpHits = len(out.Results)

	targets := r.claimURLs(ctx, out.Results, p.DryRun, log)
	results := make([]urlResult, len(targets))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.Concurrency.Global))
	for i, t := range targets {
		g.Go(func() error {
			results[i] = r.processURL(gCtx, runID, sel.Dork.Text, t, p)
			return nil
		})
	}
	_ = g.Wait()

	var leads []model.Lead
	for _, res := range results {
		mergeURL(qo, res)
		if res.lead != nil {
			leads = append(leads, *res.lead)
		}
	}

	// Completed work is persisted even past the deadline.
	persistCtx := context.WithoutCancel(ctx)
	qo.Dork.AcceptedLeads = r.persist(persistCtx, qo, leads, p.DryRun, log)
	qo.Accepted = qo.Dork.AcceptedLeads
	if !p.DryRun {
		r.markURLsSeen(persistCtx, results, log)
	}
	r.releaseRetryable(results)

	log.Debug("pipeline: query complete",
		zap.Int("serp_hits", qo.Dork.SerpHits),
		zap.Int("urls_fetched", qo.Dork.URLsFetched),
		zap.Int("leads_found", qo.Dork.LeadsFound),
		zap.Int("accepted", qo.Dork.AcceptedLeads),
	)
	return qo
}

// claimURLs drops hits already seen by this process or, outside dry runs,
// by earlier runs.
func (r *Runner) claimURLs(ctx context.Context, hits []model.SearchResult, dryRun bool, log *zap.Logger) []target {
	out := make([]target, 0, len(hits))
	for _, h := range hits {
		norm, err := search.NormalizeURL(h.URL)
		if err != nil {
			continue
		}
		if !r.dedup.CheckAndMark(dedup.NSURL, norm) {
			log.Debug("pipeline: url already claimed", zap.String("url", h.URL))
			continue
		}
		if !dryRun {
			seen, err := r.store.IsURLSeen(ctx, norm)
			if err != nil {
				log.Warn("pipeline: url-seen lookup failed", zap.String("url", h.URL), zap.Error(err))
			}
			if seen {
				log.Debug("pipeline: url seen in earlier run", zap.String("url", h.URL))
				continue
			}
		}
		out = append(out, target{SearchResult: h, norm: norm})
	}
	return out
}

// processURL fetches, extracts, validates and scores one page.
func (r *Runner) processURL(ctx context.Context, runID, query string, t target, p Params) (res urlResult) {
	res.host = resilience.HostKey(t.URL)
	res.norm = t.norm
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("url", t.URL))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline: recovered panic in url", zap.Any("panic", rec), zap.Stack("stack"))
			d := resilience.NewDroppedURL(t.URL, query, eris.Errorf("pipeline: panic: %v", rec), r.now())
			res.panicked = true
			res.dropped = &d
			res.lead = nil
			res.reject = ""
		}
	}()

	resp, err := r.fetcher.Fetch(ctx, t.URL)
	if err != nil {
		if ctx.Err() != nil {
			res.abandoned = true
			return res
		}
		res.fetchErr = err
		res.kind = resilience.ClassifyError(err)
		d := resilience.NewDroppedURL(t.URL, query, err, r.now())
		res.dropped = &d
		if res.kind == resilience.KindPenalized {
			log.Debug("pipeline: host penalized, url skipped")
		} else {
			log.Warn("pipeline: fetch failed, url dropped", zap.String("kind", res.kind), zap.Error(err))
		}
		return res
	}
	res.fetched = true

	if blocked, kind := DetectBlock(resp); blocked {
		log.Warn("pipeline: anti-bot page, penalizing host", zap.String("block", string(kind)))
		if r.penalties != nil {
			r.penalties.Penalize(res.host)
		}
		res.reject = ReasonBlockedPage
		return res
	}

	cand, err := r.extractor.Extract(resp, t.SearchResult)
	if err != nil {
		log.Debug("pipeline: extract failed", zap.Error(err))
		res.reject = ReasonExtractFailed
		return res
	}
	cand.Query = query

	v := r.validator.Validate(cand)
	if !v.Accept {
		log.Debug("pipeline: candidate rejected", zap.String("reason", v.Reason))
		res.reject = v.Reason
		return res
	}
	res.found = true

	now := r.now()
	b := r.scorer.Score(cand.FullText(), t.URL, scorer.Context{
		Mode:             p.Mode,
		PhoneType:        v.Phone.Type,
		EmailTier:        v.EmailTier,
		HasName:          v.Name != "",
		HasWhatsApp:      len(cand.WhatsApp) > 0,
		HasTelegram:      len(cand.Telegram) > 0,
		Now:              now,
		IndustryKeywords: r.cfg.Industries[strings.ToLower(p.Industry)],
	})
	lead := model.Lead{
		Name:        v.Name,
		Company:     v.Company,
		Phone:       v.Phone.Canonical,
		PhoneType:   v.Phone.Type,
		Email:       v.Email,
		EmailTier:   v.EmailTier,
		SourceURL:   t.URL,
		Source:      t.Source,
		Query:       query,
		Title:       cand.Title,
		Score:       b.Total,
		Signals:     b.SignalNames(),
		LeadType:    scorer.ClassifyLeadType(t.URL, v, v.Name),
		CompanySize: b.Classification.CompanySize,
		Industry:    b.Classification.Industry,
		HiddenGem:   b.Classification.HiddenGem,
		WhatsApp:    first(cand.WhatsApp),
		Telegram:    first(cand.Telegram),
		RunID:       runID,
		FoundAt:     now,
	}

	if !r.scorer.Passes(b) {
		log.Debug("pipeline: lead below min score", zap.Int("score", b.Total), zap.Int("min_score", r.scorer.MinScore()))
		res.reject = ReasonBelowMinScore
		return res
	}
	if reason := gate(lead, p); reason != "" {
		res.reject = reason
		return res
	}
	res.kept = true

	if ok, key := r.dedup.Claim(
		dedup.Key{NS: dedup.NSPhone, Value: lead.Phone},
		dedup.Key{NS: dedup.NSEmail, Value: lead.Email},
	); !ok {
		res.reject = ReasonDuplicatePhone
		if key.NS == dedup.NSEmail {
			res.reject = ReasonDuplicateEmail
		}
		return res
	}
	if !p.DryRun {
		exists, err := r.store.LeadExists(ctx, lead.Phone, lead.Email)
		if err != nil {
			log.Warn("pipeline: lead lookup failed", zap.Error(err))
		}
		if exists {
			res.reject = ReasonDuplicateLead
			return res
		}
	}

	lead.Accept = true
	res.lead = &lead
	log.Debug("pipeline: lead accepted", zap.Int("score", lead.Score), zap.String("lead_type", string(lead.LeadType)))
	return res
}

// gate applies the secondary per-run gates: candidate-only lead type and
// the source host allow-list.
func gate(lead model.Lead, p Params) string {
	if (p.RequireCandidate || p.Mode == model.OperatingCandidates) && lead.LeadType != model.LeadTypeCandidate {
		return ReasonNotCandidate
	}
	if len(p.SourceAllowList) > 0 && !hostAllowed(resilience.HostKey(lead.SourceURL), p.SourceAllowList) {
		return ReasonSourceNotAllowed
	}
	return ""
}

func hostAllowed(host string, allow []string) bool {
	for _, a := range allow {
		a = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(a)), ".")
		if a != "" && (host == a || strings.HasSuffix(host, "."+a)) {
			return true
		}
	}
	return false
}

// mergeURL folds one worker result into the query outcome.
func mergeURL(qo *metrics.QueryOutcome, res urlResult) {
	if res.abandoned {
		return
	}
	hs := qo.Host(res.host)
	switch {
	case res.fetchErr != nil:
		qo.Fetches[res.kind]++
		if res.kind != resilience.KindPenalized {
			hs.Requests++
			hs.Failures++
			qo.Dork.FetchErrors++
		}
		if res.kind == resilience.KindRateLimit {
			hs.RateLimited++
		}
	case res.fetched:
		qo.Fetches[metrics.FetchOK]++
		hs.Requests++
		qo.Dork.URLsFetched++
	}
	if res.found {
		qo.Dork.LeadsFound++
		hs.LeadsFound++
	}
	if res.kept {
		qo.Dork.LeadsKept++
	}
	if res.reject != "" {
		qo.Reject(res.reject)
	}
	if res.panicked {
		qo.Panics++
		qo.Reject(ReasonInternalError)
	}
	if res.dropped != nil {
		qo.Dropped = append(qo.Dropped, *res.dropped)
	}
}

// persist stores the accepted leads of a query and returns how many were
// accepted. Dry runs accept without writing.
func (r *Runner) persist(ctx context.Context, qo *metrics.QueryOutcome, leads []model.Lead, dryRun bool, log *zap.Logger) int {
	if len(leads) == 0 || dryRun {
		return len(leads)
	}
	ids, err := r.store.InsertLeads(ctx, leads)
	if err != nil {
		log.Error("pipeline: insert leads failed", zap.Int("leads", len(leads)), zap.Error(err))
		for _, l := range leads {
			qo.Reject(ReasonStoreError)
			r.dedup.Forget(
				dedup.Key{NS: dedup.NSPhone, Value: l.Phone},
				dedup.Key{NS: dedup.NSEmail, Value: l.Email},
			)
		}
		return 0
	}
	if len(ids) < len(leads) {
		log.Debug("pipeline: some leads were already stored unchanged", zap.Int("leads", len(leads)), zap.Int("written", len(ids)))
	}
	return len(leads)
}

// settled reports whether res should keep its URL out of later runs:
// the page was fetched or failed terminally.
func (res urlResult) settled() bool {
	if res.abandoned {
		return false
	}
	return res.fetched || res.kind == resilience.KindHTTPStatus || res.kind == resilience.KindContent
}

// markURLsSeen records fetched URLs and terminal failures so later runs
// skip them. Transient failures stay eligible.
func (r *Runner) markURLsSeen(ctx context.Context, results []urlResult, log *zap.Logger) {
	ttl := r.dedup.URLTTL()
	for _, res := range results {
		if !res.settled() {
			continue
		}
		if err := r.store.MarkURLSeen(ctx, res.norm, ttl); err != nil {
			log.Warn("pipeline: mark url seen failed", zap.String("url", res.norm), zap.Error(err))
		}
	}
}

// releaseRetryable drops the in-memory URL claims of abandoned and
// transiently failed fetches so the next cycle of a loop can retry them.
func (r *Runner) releaseRetryable(results []urlResult) {
	for _, res := range results {
		if !res.settled() {
			r.dedup.Forget(dedup.Key{NS: dedup.NSURL, Value: res.norm})
		}
	}
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
