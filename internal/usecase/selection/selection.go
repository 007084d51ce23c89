package usecase_selection

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wellworld/core/internal/model"
)

// CoordEpsilon is the per-axis tolerance used to resolve a coordinate pair
// back to a catalog opportunity. Coordinates round-trip through the store as
// floating point, so exact equality is too strict.
const CoordEpsilon = 0.01

// DefaultDebounce coalesces rapid repeated local writes (double-clicks,
// re-renders) into one store update.
const DefaultDebounce = 100 * time.Millisecond

//go:generate mockery --name=SelectionStore --output=./mocks/selection/store --filename=store.go
type SelectionStore interface {
	UpdateSelection(ctx context.Context, code string, sel model.Selection) (model.RoomChange, error)
}

type Publisher interface {
	Publish(change model.RoomChange) error
}

type CountryMatcher interface {
	Matches(a, b string) bool
}

// View is one client's local picture of the shared selection. Country and
// Selected are mutually exclusive; ShowAll controls whether the whole
// country scope or a single highlighted pin is displayed.
type View struct {
	Country  *string
	Selected *model.Opportunity
	ShowAll  bool
}

func NewView() View {
	return View{ShowAll: true}
}

// Reduce derives the next local view from a change-feed event. Pure: no
// hidden state, no side effects, deterministic for identical inputs.
//
// The transition type comes from comparing the country field against its
// previous value, not from the new value alone: clearing a country and
// selecting a single opportunity both leave the country null and can only be
// told apart from context.
func Reduce(prior View, ev model.RoomChange, catalog []model.Opportunity) View {
	if !eqStrPtr(ev.New.SelectedCountry, ev.Previous.SelectedCountry) {
		return View{Country: ev.New.SelectedCountry, ShowAll: true}
	}

	if ev.New.SelectedLat != nil && ev.New.SelectedLng != nil && ev.New.SelectedCountry == nil {
		if opp := resolveByCoords(catalog, *ev.New.SelectedLat, *ev.New.SelectedLng); opp != nil {
			return View{Selected: opp, ShowAll: false}
		}
		return prior
	}

	if ev.New.SelectedCountry == nil && ev.New.SelectedLat == nil && ev.New.SelectedLng == nil {
		return View{ShowAll: true}
	}

	return prior
}

// resolveByCoords picks the closest opportunity within CoordEpsilon on both
// axes, or nil when none qualifies.
func resolveByCoords(catalog []model.Opportunity, lat, lng float64) *model.Opportunity {
	var best *model.Opportunity
	bestDist := math.MaxFloat64

	for i := range catalog {
		dLat := math.Abs(catalog[i].Lat - lat)
		dLng := math.Abs(catalog[i].Lng - lng)
		if dLat > CoordEpsilon || dLng > CoordEpsilon {
			continue
		}
		if d := dLat + dLng; d < bestDist {
			best = &catalog[i]
			bestDist = d
		}
	}

	return best
}

// DisplayList filters the catalog down to what the client should render:
// country-scoped when a country is selected, restricted to the single
// highlighted opportunity when ShowAll is off. Pure.
func DisplayList(all []model.Opportunity, view View, matcher CountryMatcher) []model.Opportunity {
	scoped := make([]model.Opportunity, 0, len(all))
	for _, opp := range all {
		if view.Country != nil && !matcher.Matches(*view.Country, opp.Country) {
			continue
		}
		scoped = append(scoped, opp)
	}

	if view.ShowAll || view.Selected == nil {
		return scoped
	}

	single := make([]model.Opportunity, 0, 1)
	for _, opp := range scoped {
		if opp.ID == view.Selected.ID {
			single = append(single, opp)
		}
	}
	return single
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Session owns one connected client's selection state: it applies local
// gestures, reconciles remote change-feed events and pushes debounced writes
// to the store. Writes go store-first; the resulting {previous,new} pair is
// published on the feed so every session, this one included, converges
// through the same path.
type Session struct {
	code    string
	store   SelectionStore
	feed    Publisher
	catalog []model.Opportunity
	matcher CountryMatcher
	logger  *slog.Logger

	onCountrySelected func(country *string)
	onFocus           func(opp *model.Opportunity)

	mu       sync.Mutex
	view     View
	debounce time.Duration
	timer    *time.Timer
	pending  *model.Selection
	closed   bool
}

type SessionOption func(*Session)

func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) {
		s.debounce = d
	}
}

func WithCountryConsumer(fn func(country *string)) SessionOption {
	return func(s *Session) {
		s.onCountrySelected = fn
	}
}

func WithFocusConsumer(fn func(opp *model.Opportunity)) SessionOption {
	return func(s *Session) {
		s.onFocus = fn
	}
}

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

func NewSession(
	code string,
	store SelectionStore,
	feed Publisher,
	catalog []model.Opportunity,
	matcher CountryMatcher,
	opts ...SessionOption,
) *Session {
	s := &Session{
		code:     code,
		store:    store,
		feed:     feed,
		catalog:  catalog,
		matcher:  matcher,
		logger:   slog.Default(),
		view:     NewView(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectOpportunity resolves a picked pin to its country: the whole nation's
// opportunities stay visible rather than the one pin being isolated. The
// fallback path, taken when the record carries no country or no country
// consumer is registered, isolates the single opportunity instead.
func (s *Session) SelectOpportunity(opp model.Opportunity) {
	s.mu.Lock()

	if opp.Country != "" && s.onCountrySelected != nil {
		country := opp.Country
		s.view = View{Country: &country, ShowAll: true}
		s.scheduleWriteLocked(model.SelectionCountry(opp.Country))
		notify := s.onCountrySelected
		s.mu.Unlock()

		notify(&country)
		return
	}

	selected := opp
	s.view = View{Selected: &selected, ShowAll: false}
	s.scheduleWriteLocked(model.SelectionPoint(opp.Lat, opp.Lng))
	s.mu.Unlock()
}

// ClearSelection drops both the country and the highlighted pin.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.view = View{ShowAll: true}
	s.scheduleWriteLocked(model.SelectionNone())
	notify := s.onFocus
	s.mu.Unlock()

	if notify != nil {
		notify(nil)
	}
}

// ApplyRemote reconciles one change-feed event into the local view. Safe
// under duplicate delivery: reapplying the same event leaves the state
// untouched and triggers no consumer callbacks.
func (s *Session) ApplyRemote(ev model.RoomChange) {
	s.mu.Lock()
	next := Reduce(s.view, ev, s.catalog)
	focusChanged := !sameSelected(s.view.Selected, next.Selected)
	s.view = next
	notify := s.onFocus
	s.mu.Unlock()

	if focusChanged && notify != nil {
		notify(next.Selected)
	}
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Session) DisplayList() []model.Opportunity {
	return DisplayList(s.catalog, s.View(), s.matcher)
}

// scheduleWriteLocked is a cancel-and-reschedule debounce: every new intent
// replaces the pending one and restarts the window, so only the last write
// within a burst reaches the store, and it always does.
func (s *Session) scheduleWriteLocked(sel model.Selection) {
	if s.closed {
		return
	}
	s.pending = &sel
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flushPending)
}

func (s *Session) flushPending() {
	s.mu.Lock()
	sel := s.pending
	s.pending = nil
	s.mu.Unlock()

	if sel == nil {
		return
	}

	change, err := s.store.UpdateSelection(context.Background(), s.code, *sel)
	if err != nil {
		// Reconciliation never surfaces errors to the user; the local view
		// simply lags until the next event.
		s.logger.Error("selection write failed", "room", s.code, "error", err)
		return
	}

	if s.feed != nil {
		if err := s.feed.Publish(change); err != nil {
			s.logger.Error("change publish failed", "room", s.code, "error", err)
		}
	}
}

// Close stops the debounce timer and flushes the last pending write.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.flushPending()
}

func sameSelected(a, b *model.Opportunity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
