// ABOUTME: Lead intake: profile scraping, niche detection and graph-based discovery
// ABOUTME: Every platform call is paced; failures skip the candidate and move on
package leads

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/metrics"
	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/platform"
	"github.com/harper/dmagent/internal/util"
)

// CaptionLimit is how many characters of the latest caption are kept
const CaptionLimit = 200

// Seeds are the business accounts suggestion walks start from
var Seeds = []string{
	"alisherisaev_uz", "ibrohim_gulyamov", "akmalabdullaev_uz",
	"asror.iskandarov", "shukurullo_isroilov_official",
	"temur_adhamov", "zohid_mamatov",
}

// Influencers are the sources DiscoverAll cycles through
var Influencers = append(append([]string{}, Seeds...),
	"aziz_saidov_official", "abbos_baxtiyorovich", "muhammadali_eshonqulov",
	"jahongir_artikhodjayev_official", "murod_nazarov_official",
)

// Store is the persistence intake needs
type Store interface {
	UpsertLead(ctx context.Context, in models.NewLead) (int64, error)
	GetLeadByHandle(ctx context.Context, handle string) (*models.Lead, error)
}

// NicheDetector classifies a profile; it never fails
type NicheDetector interface {
	DetectNiche(ctx context.Context, bio, lastPost string) string
}

// Range is a closed random delay interval
type Range struct{ Min, Max time.Duration }

// Pacing holds the waits between platform calls
type Pacing struct {
	BetweenHandles  Range
	BetweenProfiles Range
	BetweenExpands  Range
	BetweenSources  Range
}

// DefaultPacing keeps scraping slow enough to look manual
func DefaultPacing() Pacing {
	return Pacing{
		BetweenHandles:  Range{3 * time.Second, 8 * time.Second},
		BetweenProfiles: Range{10 * time.Second, 20 * time.Second},
		BetweenExpands:  Range{5 * time.Second, 10 * time.Second},
		BetweenSources:  Range{30 * time.Second, 60 * time.Second},
	}
}

// Option customises an Intake
type Option func(*Intake)

// WithPacing overrides the default waits
func WithPacing(p Pacing) Option { return func(in *Intake) { in.pacing = p } }

// WithSleeper replaces the context-aware sleep
func WithSleeper(fn func(context.Context, time.Duration) error) Option {
	return func(in *Intake) { in.sleep = fn }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option { return func(in *Intake) { in.logger = logger } }

// Intake adds leads to the store
type Intake struct {
	dir    platform.Directory
	store  Store
	niche  NicheDetector
	pacing Pacing
	sleep  func(context.Context, time.Duration) error
	jitter func(lo, hi time.Duration) time.Duration
	logger *zap.Logger
}

// New builds an Intake
func New(dir platform.Directory, store Store, niche NicheDetector, opts ...Option) *Intake {
	in := &Intake{
		dir:    dir,
		store:  store,
		niche:  niche,
		pacing: DefaultPacing(),
		sleep:  util.Sleep,
		jitter: util.Between,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = zap.NewNop()
	}
	return in
}

// Result tallies one intake run
type Result struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

func (r *Result) merge(o Result) {
	r.Added = append(r.Added, o.Added...)
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.Failed = append(r.Failed, o.Failed...)
}

func (r Result) String() string {
	return fmt.Sprintf("%d added, %d skipped, %d failed", len(r.Added), len(r.Skipped), len(r.Failed))
}

type outcome uint8

const (
	added outcome = iota
	skipped
	failed
)

func (r *Result) record(handle string, o outcome) {
	switch o {
	case added:
		r.Added = append(r.Added, handle)
	case skipped:
		r.Skipped = append(r.Skipped, handle)
	default:
		r.Failed = append(r.Failed, handle)
	}
}

func (in *Intake) wait(ctx context.Context, r Range) error {
	return in.sleep(ctx, in.jitter(r.Min, r.Max))
}

// scrape fetches one profile and stores it as a lead. Known handles are
// skipped without a platform call. Only store errors and cancellation are
// returned; platform failures become a failed outcome.
func (in *Intake) scrape(ctx context.Context, handle string, businessOnly bool) (outcome, error) {
	existing, err := in.store.GetLeadByHandle(ctx, handle)
	if err != nil {
		return failed, err
	}
	if existing != nil {
		return skipped, nil
	}

	profile, err := in.dir.FetchProfile(ctx, handle)
	if err != nil {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		metrics.RecordPlatformError("fetch_profile")
		in.logger.Warn("profile scrape failed", zap.String("handle", handle), zap.Error(err))
		return failed, nil
	}
	if profile == nil {
		in.logger.Info("profile not found", zap.String("handle", handle))
		return failed, nil
	}
	if businessOnly && !profile.IsBusiness {
		in.logger.Debug("not a business profile", zap.String("handle", handle))
		return skipped, nil
	}

	caption := truncate(profile.LatestCaption, CaptionLimit)
	niche := in.niche.DetectNiche(ctx, profile.Bio, caption)
	if _, err := in.store.UpsertLead(ctx, models.NewLead{
		Handle:          handle,
		Bio:             profile.Bio,
		LastPostExcerpt: caption,
		Niche:           niche,
	}); err != nil {
		return failed, err
	}
	in.logger.Info("lead added", zap.String("handle", handle), zap.String("niche", niche))
	return added, nil
}

// AddHandles scrapes and stores each handle, waiting between handles
func (in *Intake) AddHandles(ctx context.Context, handles []string) (Result, error) {
	var res Result
	list := dedupe(handles, nil)
	for i, h := range list {
		o, err := in.scrape(ctx, h, false)
		if err != nil {
			return res, err
		}
		res.record(h, o)
		if o != skipped && i < len(list)-1 {
			if err := in.wait(ctx, in.pacing.BetweenHandles); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// ScrapeFollowers collects up to amount candidates from source's followers
// and post likers (half each) and keeps the business profiles
func (in *Intake) ScrapeFollowers(ctx context.Context, source string, amount int) (Result, error) {
	source = models.NormalizeHandle(source)
	half := amount / 2
	if half < 1 {
		half = 1
	}

	var candidates []string
	followers, err := in.dir.FetchFollowers(ctx, source, half)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		metrics.RecordPlatformError("fetch_followers")
		in.logger.Warn("followers unavailable", zap.String("handle", source), zap.Error(err))
	}
	candidates = append(candidates, followers...)

	likers, err := in.dir.FetchLikers(ctx, source, half)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		metrics.RecordPlatformError("fetch_likers")
		in.logger.Warn("likers unavailable", zap.String("handle", source), zap.Error(err))
	}
	candidates = append(candidates, likers...)

	list := dedupe(candidates, []string{source})
	in.logger.Info("candidates collected", zap.String("source", source), zap.Int("unique", len(list)))
	return in.analyze(ctx, list)
}

// analyze scrapes candidates as business-only leads, pacing between profiles
func (in *Intake) analyze(ctx context.Context, list []string) (Result, error) {
	var res Result
	for i, h := range list {
		o, err := in.scrape(ctx, h, true)
		if err != nil {
			return res, err
		}
		res.record(h, o)
		if i < len(list)-1 {
			if err := in.wait(ctx, in.pacing.BetweenProfiles); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// Discover walks the suggestion tree from up to three seeds. A query that
// looks like a handle is tried first. Seeds themselves are never added.
func (in *Intake) Discover(ctx context.Context, query string, amount int) (Result, error) {
	seeds := append([]string{}, Seeds...)
	if q := models.NormalizeHandle(query); q != "" && !strings.ContainsAny(q, " \t") {
		seeds = append([]string{q}, seeds...)
	}
	if len(seeds) > 3 {
		seeds = seeds[:3]
	}

	expanded := make(map[string]bool)
	var found []string
	for _, seed := range seeds {
		suggestions, err := in.suggest(ctx, seed, 20)
		if err != nil {
			return Result{}, err
		}
		expanded[seed] = true
		found = append(found, suggestions...)

		if len(found) >= amount {
			continue
		}
		for _, sub := range first(suggestions, 3) {
			if expanded[sub] {
				continue
			}
			more, err := in.suggest(ctx, sub, 10)
			if err != nil {
				return Result{}, err
			}
			expanded[sub] = true
			found = append(found, more...)
			if err := in.wait(ctx, in.pacing.BetweenExpands); err != nil {
				return Result{}, err
			}
		}
	}

	list := first(dedupe(found, append(seeds, Seeds...)), amount)
	in.logger.Info("discovery complete", zap.Int("seeds", len(seeds)), zap.Int("unique", len(list)))
	return in.analyze(ctx, list)
}

func (in *Intake) suggest(ctx context.Context, handle string, amount int) ([]string, error) {
	out, err := in.dir.FetchSuggestions(ctx, handle, amount)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.RecordPlatformError("fetch_suggestions")
		in.logger.Warn("suggestions unavailable", zap.String("handle", handle), zap.Error(err))
		return nil, nil
	}
	return out, nil
}

// DiscoverAll runs ScrapeFollowers for every influencer in turn
func (in *Intake) DiscoverAll(ctx context.Context, amountPerSource int) (Result, error) {
	var total Result
	for i, src := range Influencers {
		in.logger.Info("discovering from source", zap.String("source", src), zap.Int("n", i+1), zap.Int("of", len(Influencers)))
		res, err := in.ScrapeFollowers(ctx, src, amountPerSource)
		total.merge(res)
		if err != nil {
			return total, err
		}
		if i < len(Influencers)-1 {
			if err := in.wait(ctx, in.pacing.BetweenSources); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// ReadHandles reads one handle per line, ignoring blank lines and # comments
func ReadHandles(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// first CSV column
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

// dedupe normalizes handles, keeping first occurrences and dropping excluded ones
func dedupe(handles, exclude []string) []string {
	seen := make(map[string]bool, len(handles)+len(exclude))
	for _, h := range exclude {
		seen[models.NormalizeHandle(h)] = true
	}
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		n := models.NormalizeHandle(h)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func first(s []string, n int) []string {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
