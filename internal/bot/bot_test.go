package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/ai"
	"github.com/spigell/vkinder/internal/messenger"
	"github.com/spigell/vkinder/internal/profile"
	"github.com/spigell/vkinder/internal/session"
	"github.com/spigell/vkinder/internal/storage/sqlite"
)

type likeCall struct {
	like    bool
	ownerID int64
	photoID int64
}

type stubSocial struct {
	users      map[int64]profile.User
	candidates []profile.Candidate
	photos     map[int64][]profile.Photo
	groups     map[int64]profile.IDSet
	likeResult bool
	searchErr  error
	likes      []likeCall
}

func (s *stubSocial) GetUser(_ context.Context, userID int64) (profile.User, bool, error) {
	u, ok := s.users[userID]
	return u, ok, nil
}

func (s *stubSocial) SearchCandidates(context.Context, profile.User) ([]profile.Candidate, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return append([]profile.Candidate(nil), s.candidates...), nil
}

func (s *stubSocial) TopPhotos(_ context.Context, ownerID int64, limit int) ([]profile.Photo, error) {
	photos := s.photos[ownerID]
	if len(photos) > limit {
		photos = photos[:limit]
	}
	return photos, nil
}

func (s *stubSocial) LikePhoto(_ context.Context, ownerID, photoID int64) (bool, error) {
	s.likes = append(s.likes, likeCall{like: true, ownerID: ownerID, photoID: photoID})
	return s.likeResult, nil
}

func (s *stubSocial) UnlikePhoto(_ context.Context, photoID, ownerID int64) (bool, error) {
	s.likes = append(s.likes, likeCall{like: false, ownerID: ownerID, photoID: photoID})
	return s.likeResult, nil
}

func (s *stubSocial) Groups(_ context.Context, userID int64) (profile.IDSet, error) {
	if g, ok := s.groups[userID]; ok {
		return g, nil
	}
	return profile.NewIDSet(), nil
}

type stubIcebreaker struct {
	pairs []ai.Pair
}

func (s *stubIcebreaker) Suggest(_ context.Context, pair ai.Pair) (string, error) {
	s.pairs = append(s.pairs, pair)
	return "Привет! Тоже любишь Москву?", nil
}

type countingObserver struct {
	commands map[string]int
	failures int
	searches []int
	sent     int
}

func (o *countingObserver) ObserveCommand(command string, _ time.Duration, err error) {
	if o.commands == nil {
		o.commands = make(map[string]int)
	}
	o.commands[command]++
	if err != nil {
		o.failures++
	}
}

func (o *countingObserver) ObserveSearch(candidates int) { o.searches = append(o.searches, candidates) }

func (o *countingObserver) MessageSent() { o.sent++ }

const (
	testUser      = int64(1)
	testCandidate = int64(2)
)

func newSocial() *stubSocial {
	return &stubSocial{
		users: map[int64]profile.User{
			testUser: {ID: testUser, FirstName: "Иван", LastName: "Петров", Age: profile.Age(30), City: "Moscow", Sex: profile.SexMale},
		},
		candidates: []profile.Candidate{
			{ID: testCandidate, FirstName: "Анна", LastName: "Смирнова", Age: profile.Age(32), City: "Moscow", Sex: profile.SexFemale, ProfileURL: "https://vk.com/id2"},
		},
		photos: map[int64][]profile.Photo{
			testCandidate: {{ID: 10, OwnerID: testCandidate, Likes: 50, URL: "https://img/10", Rank: 1}},
		},
		groups: map[int64]profile.IDSet{
			testUser:      profile.NewIDSet(1, 2, 3, 4, 5, 100),
			testCandidate: profile.NewIDSet(1, 2, 3, 4, 5, 200),
		},
		likeResult: true,
	}
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "vkinder.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

// flakyStore fails selected calls of an otherwise real store.
type flakyStore struct {
	*sqlite.Store
	blacklistErr     error
	saveCandidateErr error
}

func (f *flakyStore) Blacklist(ctx context.Context, userID int64) (profile.IDSet, error) {
	if f.blacklistErr != nil {
		return nil, f.blacklistErr
	}
	return f.Store.Blacklist(ctx, userID)
}

func (f *flakyStore) SaveCandidate(ctx context.Context, c profile.Candidate, photos []profile.Photo) error {
	if f.saveCandidateErr != nil {
		return f.saveCandidateErr
	}
	return f.Store.SaveCandidate(ctx, c, photos)
}

type harness struct {
	bot      *Bot
	social   *stubSocial
	store    *sqlite.Store
	flaky    *flakyStore
	sent     *messenger.Recorder
	observer *countingObserver
}

func newHarness(t *testing.T, cfg Config, icebreaker ai.Icebreaker) *harness {
	t.Helper()

	h := &harness{
		social:   newSocial(),
		store:    newStore(t),
		sent:     &messenger.Recorder{},
		observer: &countingObserver{},
	}
	h.flaky = &flakyStore{Store: h.store}
	deps := Deps{
		Social:   h.social,
		Store:    h.flaky,
		Sender:   h.sent,
		Observer: h.observer,
		Logger:   zap.NewNop(),
	}
	if icebreaker != nil {
		deps.Icebreaker = icebreaker
	}
	h.bot = New(deps, cfg)
	return h
}

// send dispatches text and returns the single reply it produced.
func (h *harness) send(t *testing.T, text string) messenger.Message {
	t.Helper()

	before := len(h.sent.Messages)
	h.bot.Dispatch(context.Background(), testUser, text)
	if got := len(h.sent.Messages) - before; got != 1 {
		t.Fatalf("expected exactly one reply to %q, got %d", text, got)
	}

	msg, _ := h.sent.Last()
	if msg.UserID != testUser {
		t.Fatalf("reply addressed to %d, want %d", msg.UserID, testUser)
	}
	return msg
}

func hasLabel(kb *messenger.Keyboard, label string) bool {
	for _, l := range kb.Labels() {
		if l == label {
			return true
		}
	}
	return false
}

func TestSearchShowsScoredCandidate(t *testing.T) {
	h := newHarness(t, Config{}, nil)

	msg := h.send(t, "Найти пару")

	for _, want := range []string{
		"👤 Анна Смирнова",
		"🎂 Возраст: 32",
		"🏙️ Город: Moscow",
		"👥 Общие группы: 5",
		"🔗 Профиль: https://vk.com/id2",
		"💘 Совпадение: 77%",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("card %q does not contain %q", msg.Text, want)
		}
	}

	if len(msg.Attachments) != 1 || msg.Attachments[0] != "photo2_10" {
		t.Fatalf("unexpected attachments %v", msg.Attachments)
	}
	if msg.Keyboard == nil || !msg.Keyboard.Inline || !hasLabel(msg.Keyboard, labelNext) {
		t.Fatalf("expected inline candidate keyboard, got %+v", msg.Keyboard)
	}
	if hasLabel(msg.Keyboard, labelIcebreaker) {
		t.Fatalf("icebreaker button must be hidden when no icebreaker is configured")
	}

	if _, err := h.store.GetUser(context.Background(), testUser); err != nil {
		t.Fatalf("user was not persisted: %v", err)
	}
	photos, err := h.store.CandidatePhotos(context.Background(), testCandidate, 3)
	if err != nil || len(photos) != 1 {
		t.Fatalf("candidate photos were not persisted: %v %v", photos, err)
	}

	if len(h.observer.searches) != 1 || h.observer.searches[0] != 1 {
		t.Fatalf("expected one observed search with 1 candidate, got %v", h.observer.searches)
	}
	if h.observer.sent != 1 {
		t.Fatalf("expected 1 sent message, got %d", h.observer.sent)
	}
}

func TestSearchWithEverythingBlacklisted(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	if err := h.store.AddToBlacklist(context.Background(), testUser, testCandidate); err != nil {
		t.Fatalf("blacklist: %v", err)
	}

	msg := h.send(t, "поиск")
	if msg.Text != textNoCandidates {
		t.Fatalf("expected no candidates reply, got %q", msg.Text)
	}

	msg = h.send(t, labelNext)
	if msg.Text != textExhausted {
		t.Fatalf("an empty search leaves nothing to browse, got %q", msg.Text)
	}
}

func TestEmptySearchEndsPreviousPass(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	h.social.candidates = append(h.social.candidates, profile.Candidate{ID: 3, FirstName: "Мария", Sex: profile.SexFemale})

	h.send(t, labelSearch)

	h.social.candidates = nil
	if msg := h.send(t, labelSearch); msg.Text != textNoCandidates {
		t.Fatalf("expected no candidates reply, got %q", msg.Text)
	}

	if msg := h.send(t, labelNext); msg.Text != textExhausted {
		t.Fatalf("the previous list must not be browsed any more, got %q", msg.Text)
	}
}

func TestSearchUnknownUser(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	delete(h.social.users, testUser)

	msg := h.send(t, labelSearch)
	if msg.Text != textNoProfile {
		t.Fatalf("expected missing profile reply, got %q", msg.Text)
	}
}

func TestBrowsingPastTheEnd(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	h.social.candidates = append(h.social.candidates, profile.Candidate{
		ID: 3, FirstName: "Мария", Age: profile.Age(28), Sex: profile.SexFemale, ProfileURL: "https://vk.com/id3",
	})

	h.send(t, labelSearch)

	msg := h.send(t, "дальше")
	if !strings.Contains(msg.Text, "Мария") || !strings.Contains(msg.Text, "Город: не указан") {
		t.Fatalf("expected second candidate card, got %q", msg.Text)
	}

	for i := 0; i < 2; i++ {
		msg = h.send(t, labelNext)
		if msg.Text != textExhausted {
			t.Fatalf("expected exhausted reply, got %q", msg.Text)
		}
	}

	msg = h.send(t, labelAddFavorite)
	if msg.Text != textExhausted {
		t.Fatalf("actions on an exhausted session must say so, got %q", msg.Text)
	}
}

func TestActionsWithoutSession(t *testing.T) {
	h := newHarness(t, Config{}, nil)

	for _, label := range []string{labelAddFavorite, labelBlacklist, labelLike, labelUnlike, labelRemoveFavorite} {
		msg := h.send(t, label)
		if msg.Text != textSearchFirst {
			t.Fatalf("%s: expected search first reply, got %q", label, msg.Text)
		}
	}

	if msg := h.send(t, labelNext); msg.Text != textRestart {
		t.Fatalf("next without session: got %q", msg.Text)
	}
}

func TestFavoritesFlow(t *testing.T) {
	h := newHarness(t, Config{}, nil)

	if msg := h.send(t, labelFavorites); msg.Text != textNoFavorites {
		t.Fatalf("expected empty favorites, got %q", msg.Text)
	}

	h.send(t, labelSearch)

	if msg := h.send(t, labelAddFavorite); msg.Text != "Добавлено в избранное: Анна Смирнова" {
		t.Fatalf("unexpected add reply %q", msg.Text)
	}
	if msg := h.send(t, labelAddFavorite); msg.Text != textAlreadyFavorite {
		t.Fatalf("expected duplicate reply, got %q", msg.Text)
	}

	msg := h.send(t, "FAVORITES")
	if !strings.HasPrefix(msg.Text, textFavoritesHeader) || !strings.Contains(msg.Text, "Ссылка: https://vk.com/id2") {
		t.Fatalf("unexpected favorites list %q", msg.Text)
	}
	if !hasLabel(msg.Keyboard, labelRemoveFavorite) || !hasLabel(msg.Keyboard, labelBack) {
		t.Fatalf("expected favorites keyboard, got %v", msg.Keyboard.Labels())
	}

	if msg := h.send(t, labelRemoveFavorite); msg.Text != textRemoved {
		t.Fatalf("unexpected remove reply %q", msg.Text)
	}
	if msg := h.send(t, labelRemoveFavorite); msg.Text != textNotRemoved {
		t.Fatalf("unexpected second remove reply %q", msg.Text)
	}

	if msg := h.send(t, labelBack); msg.Text != textWelcome {
		t.Fatalf("back must show the welcome text, got %q", msg.Text)
	}
}

func TestBlacklistHidesCandidate(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	h.send(t, labelSearch)

	msg := h.send(t, labelBlacklist)
	if msg.Text != "Пользователь Анна добавлен в чёрный список" {
		t.Fatalf("unexpected blacklist reply %q", msg.Text)
	}

	blacklist, err := h.store.Blacklist(context.Background(), testUser)
	if err != nil || !blacklist.Has(testCandidate) {
		t.Fatalf("candidate not blacklisted: %v %v", blacklist, err)
	}

	if msg := h.send(t, labelSearch); msg.Text != textNoCandidates {
		t.Fatalf("blacklisted candidate must not be offered again, got %q", msg.Text)
	}
}

func TestLikeFlow(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	h.send(t, labelSearch)

	if msg := h.send(t, labelLike); msg.Text != textLiked {
		t.Fatalf("unexpected like reply %q", msg.Text)
	}
	if msg := h.send(t, labelUnlike); msg.Text != textUnliked {
		t.Fatalf("unexpected unlike reply %q", msg.Text)
	}

	h.social.likeResult = false
	if msg := h.send(t, labelLike); msg.Text != textNotLiked {
		t.Fatalf("unexpected refused like reply %q", msg.Text)
	}
	if msg := h.send(t, labelUnlike); msg.Text != textNotUnliked {
		t.Fatalf("unexpected refused unlike reply %q", msg.Text)
	}

	want := likeCall{like: true, ownerID: testCandidate, photoID: 10}
	if len(h.social.likes) != 4 || h.social.likes[0] != want {
		t.Fatalf("unexpected like calls %+v", h.social.likes)
	}
}

func TestLikeWithoutPhotos(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	delete(h.social.photos, testCandidate)
	h.send(t, labelSearch)

	if msg := h.send(t, labelLike); msg.Text != textNoPhotos {
		t.Fatalf("expected no photos reply, got %q", msg.Text)
	}
	if len(h.social.likes) != 0 {
		t.Fatalf("no like call expected, got %+v", h.social.likes)
	}
}

func TestCommandSynonyms(t *testing.T) {
	h := newHarness(t, Config{}, nil)

	tests := []struct {
		text string
		want command
	}{
		{text: "Привет", want: cmdStart},
		{text: "  начать ", want: cmdStart},
		{text: "START", want: cmdStart},
		{text: "помощь", want: cmdHelp},
		{text: "help", want: cmdHelp},
		{text: "Найти пару", want: cmdSearch},
		{text: "Поиск", want: cmdSearch},
		{text: "избранное", want: cmdFavorites},
		{text: "дальше", want: cmdNext},
		{text: labelNext, want: cmdNext},
		{text: "Отмена", want: cmdBack},
		{text: labelIcebreaker, want: cmdUnknown},
		{text: "ID: 2", want: cmdUnknown},
		{text: "как дела?", want: cmdUnknown},
		{text: "", want: cmdUnknown},
	}

	for _, tt := range tests {
		if got := h.bot.parse(tt.text); got != tt.want {
			t.Fatalf("parse(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestUnknownAndHelp(t *testing.T) {
	h := newHarness(t, Config{}, nil)

	msg := h.send(t, "как дела?")
	if msg.Text != textUnknown {
		t.Fatalf("unexpected fallback %q", msg.Text)
	}
	if !hasLabel(msg.Keyboard, labelSearch) {
		t.Fatalf("fallback must carry the main keyboard")
	}

	for _, text := range []string{"привет", "помощь"} {
		if msg := h.send(t, text); msg.Text != textWelcome {
			t.Fatalf("%q: expected welcome text, got %q", text, msg.Text)
		}
	}
}

func TestFailureRepliesWithApology(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	h.social.searchErr = errors.New("vk is down")

	msg := h.send(t, labelSearch)
	if msg.Text != textFailure {
		t.Fatalf("expected apology, got %q", msg.Text)
	}
	if h.observer.failures != 1 || h.observer.commands[string(cmdSearch)] != 1 {
		t.Fatalf("failure was not observed: %+v", h.observer)
	}
}

func TestIcebreaker(t *testing.T) {
	ice := &stubIcebreaker{}
	h := newHarness(t, Config{}, ice)

	msg := h.send(t, labelSearch)
	if !hasLabel(msg.Keyboard, labelIcebreaker) {
		t.Fatalf("expected icebreaker button, got %v", msg.Keyboard.Labels())
	}

	msg = h.send(t, labelIcebreaker)
	if !strings.HasPrefix(msg.Text, textIcebreaker) || !strings.Contains(msg.Text, "Москву") {
		t.Fatalf("unexpected icebreaker reply %q", msg.Text)
	}

	if len(ice.pairs) != 1 {
		t.Fatalf("expected one suggestion request, got %d", len(ice.pairs))
	}
	pair := ice.pairs[0]
	if pair.User.ID != testUser || pair.Candidate.ID != testCandidate || pair.CommonGroups != 5 {
		t.Fatalf("unexpected pair %+v", pair)
	}
}

func TestDebugIDButton(t *testing.T) {
	h := newHarness(t, Config{Debug: true}, nil)

	msg := h.send(t, labelSearch)
	if !hasLabel(msg.Keyboard, "ID: 2") {
		t.Fatalf("expected debug id button, got %v", msg.Keyboard.Labels())
	}

	if msg := h.send(t, "ID: 2"); msg.Text != textUnknown {
		t.Fatalf("debug button must not act as a command, got %q", msg.Text)
	}
}

func TestSearchLimit(t *testing.T) {
	h := newHarness(t, Config{SearchLimit: 1}, nil)
	h.social.candidates = append(h.social.candidates, profile.Candidate{ID: 3, FirstName: "Мария", Sex: profile.SexFemale})

	h.send(t, labelSearch)
	if msg := h.send(t, labelNext); msg.Text != textExhausted {
		t.Fatalf("search limit was not applied, got %q", msg.Text)
	}
}

func TestClosedProfiles(t *testing.T) {
	tests := []struct {
		name          string
		includeClosed bool
		want          string
	}{
		{name: "skipped by default", want: textNoCandidates},
		{name: "kept when allowed", includeClosed: true, want: "👤 Анна Смирнова"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{IncludeClosed: tt.includeClosed}, nil)
			h.social.candidates[0].Closed = true

			msg := h.send(t, labelSearch)
			if !strings.HasPrefix(msg.Text, tt.want) {
				t.Fatalf("expected reply starting with %q, got %q", tt.want, msg.Text)
			}
		})
	}
}

func cursorOf(t *testing.T, h *harness) session.Result {
	t.Helper()

	res, err := h.bot.browser.Current(context.Background(), testUser)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	return res
}

func TestFailedHandlerKeepsSession(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "next", text: labelNext},
		{name: "search", text: labelSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{}, nil)
			h.social.candidates = append(h.social.candidates, profile.Candidate{ID: 3, FirstName: "Мария", Sex: profile.SexFemale})

			h.send(t, labelSearch)
			before := cursorOf(t, h)
			if before.State != session.StateActive || before.Cursor != 0 {
				t.Fatalf("unexpected session after search: %+v", before)
			}

			h.flaky.blacklistErr = errors.New("database is locked")
			if msg := h.send(t, tt.text); msg.Text != textFailure {
				t.Fatalf("expected apology, got %q", msg.Text)
			}

			after := cursorOf(t, h)
			if after.Cursor != before.Cursor || after.Total != before.Total || after.Candidate.ID != before.Candidate.ID {
				t.Fatalf("failed %s changed the session: %+v, want %+v", tt.name, after, before)
			}

			h.flaky.blacklistErr = nil
			if msg := h.send(t, labelNext); !strings.Contains(msg.Text, "Мария") {
				t.Fatalf("expected the second candidate after recovery, got %q", msg.Text)
			}
		})
	}
}

func TestFavoriteAfterFailedCandidateSave(t *testing.T) {
	h := newHarness(t, Config{}, nil)

	h.flaky.saveCandidateErr = errors.New("disk full")
	msg := h.send(t, labelSearch)
	if !strings.Contains(msg.Text, "Анна") {
		t.Fatalf("a failed save must not hide the candidate, got %q", msg.Text)
	}

	h.flaky.saveCandidateErr = nil
	if msg := h.send(t, labelAddFavorite); msg.Text != "Добавлено в избранное: Анна Смирнова" {
		t.Fatalf("unexpected add reply %q", msg.Text)
	}

	favorites, err := h.store.Favorites(context.Background(), testUser)
	if err != nil || len(favorites) != 1 || favorites[0].ID != testCandidate {
		t.Fatalf("favorite was not stored: %v %v", favorites, err)
	}
}
