package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/ai"
	"github.com/spigell/vkinder/internal/filtering"
	"github.com/spigell/vkinder/internal/logger"
	"github.com/spigell/vkinder/internal/matching"
	"github.com/spigell/vkinder/internal/messenger"
	"github.com/spigell/vkinder/internal/profile"
	"github.com/spigell/vkinder/internal/session"
	"github.com/spigell/vkinder/internal/storage"
)

func (b *Bot) search(ctx context.Context, userID int64) (messenger.Message, error) {
	blacklist, err := b.store.Blacklist(ctx, userID)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("load blacklist: %w", err)
	}

	user, ok, err := b.social.GetUser(ctx, userID)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return b.reply(textNoProfile, b.mainKeyboard()), nil
	}

	if err := b.store.SaveUser(ctx, user); err != nil {
		return messenger.Message{}, fmt.Errorf("save user: %w", err)
	}

	found, err := b.social.SearchCandidates(ctx, user)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("search candidates: %w", err)
	}

	log := logger.WithFields(b.logger, logger.UserFields(userID, 0, string(cmdSearch))...)
	pipeline := filtering.ForSearch(user, blacklist, b.cfg.SearchLimit, log)
	if b.cfg.IncludeClosed {
		pipeline.DisableByName("closed", "closed profiles are allowed by configuration")
	}
	log.Debug("search filters", zap.Any("filters", pipeline.Describe()))

	candidates, err := pipeline.RunFilters(ctx, found)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("filter candidates: %w", err)
	}

	if b.observer != nil {
		b.observer.ObserveSearch(len(candidates))
	}

	if len(candidates) == 0 {
		// An empty pass ends the previous one.
		if _, err := b.browser.Find(ctx, userID, nil); err != nil {
			return messenger.Message{}, err
		}
		return b.reply(textNoCandidates, b.mainKeyboard()), nil
	}

	if _, err := b.browser.Find(ctx, userID, candidates); err != nil {
		return messenger.Message{}, err
	}

	log.Info("search finished", zap.Int("found", len(found)), zap.Int("candidates", len(candidates)))

	return b.show(ctx, userID, user, blacklist)
}

func (b *Bot) next(ctx context.Context, userID int64) (messenger.Message, error) {
	blacklist, err := b.store.Blacklist(ctx, userID)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("load blacklist: %w", err)
	}
	user := b.knownUser(ctx, userID)

	res, err := b.browser.Next(ctx, userID)
	if err != nil {
		return messenger.Message{}, err
	}
	if res.State == session.StateNoSession {
		return b.reply(textRestart, b.mainKeyboard()), nil
	}

	return b.show(ctx, userID, user, blacklist)
}

// show presents the candidate under the cursor, skipping blacklisted ones.
// Callers load everything that can fail before they touch the session; past
// that point show only logs failures.
func (b *Bot) show(ctx context.Context, userID int64, user profile.User, blacklist profile.IDSet) (messenger.Message, error) {
	res, err := b.browser.SkipBlacklisted(ctx, userID, blacklist)
	if err != nil {
		return messenger.Message{}, err
	}

	switch res.State {
	case session.StateNoSession:
		return b.reply(textRestart, b.mainKeyboard()), nil
	case session.StateExhausted:
		return b.reply(textExhausted, b.mainKeyboard()), nil
	}

	c := res.Candidate
	log := logger.WithFields(b.logger, logger.UserFields(userID, c.ID, "")...)

	photos, err := b.social.TopPhotos(ctx, c.ID, b.cfg.PhotoCount)
	if err != nil {
		log.Warn("failed to load photos", zap.Error(err))
		photos = nil
	}

	if err := b.store.SaveCandidate(ctx, c, photos); err != nil {
		log.Warn("failed to save candidate", zap.Error(err))
	}

	common := b.commonGroups(ctx, userID, c.ID)
	score := matching.Score(user, c, common)

	log.Debug("show candidate", zap.Int("cursor", res.Cursor), zap.Int("total", res.Total),
		zap.Int("photos", len(photos)), zap.Float64("score", score))

	return b.reply(candidateCard(c, common, score), b.candidateKeyboard(c.ID), profile.Attachments(photos)...), nil
}

// commonGroups counts shared communities. Failures count as zero.
func (b *Bot) commonGroups(ctx context.Context, userID, candidateID int64) int {
	mine, err := b.social.Groups(ctx, userID)
	if err != nil {
		b.logger.Debug("failed to load user groups", zap.Int64("user_id", userID), zap.Error(err))
		return 0
	}

	theirs, err := b.social.Groups(ctx, candidateID)
	if err != nil {
		b.logger.Debug("failed to load candidate groups", zap.Int64("candidate_id", candidateID), zap.Error(err))
		return 0
	}

	return matching.CommonGroups(mine, theirs)
}

// knownUser returns the stored requester profile, or a bare profile when it is unknown.
func (b *Bot) knownUser(ctx context.Context, userID int64) profile.User {
	user, err := b.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			b.logger.Warn("failed to load user", zap.Int64("user_id", userID), zap.Error(err))
		}
		return profile.User{ID: userID}
	}
	return user
}

// current returns the active candidate, or the reply to send when there is none.
func (b *Bot) current(ctx context.Context, userID int64) (profile.Candidate, *messenger.Message, error) {
	res, err := b.browser.Current(ctx, userID)
	if err != nil {
		return profile.Candidate{}, nil, err
	}

	switch res.State {
	case session.StateActive:
		return res.Candidate, nil, nil
	case session.StateExhausted:
		msg := b.reply(textExhausted, b.mainKeyboard())
		return profile.Candidate{}, &msg, nil
	default:
		msg := b.reply(textSearchFirst, b.mainKeyboard())
		return profile.Candidate{}, &msg, nil
	}
}

func (b *Bot) addFavorite(ctx context.Context, userID int64) (messenger.Message, error) {
	c, early, err := b.current(ctx, userID)
	if err != nil || early != nil {
		return deref(early), err
	}

	if err := b.ensureCandidate(ctx, c); err != nil {
		return messenger.Message{}, err
	}

	created, err := b.store.AddFavorite(ctx, userID, c.ID)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("add favorite: %w", err)
	}
	if !created {
		return b.reply(textAlreadyFavorite, b.candidateKeyboard(c.ID)), nil
	}

	return b.reply(addedToFavorites(c), b.candidateKeyboard(c.ID)), nil
}

func (b *Bot) removeFavorite(ctx context.Context, userID int64) (messenger.Message, error) {
	c, early, err := b.current(ctx, userID)
	if err != nil || early != nil {
		return deref(early), err
	}

	found, err := b.store.RemoveFavorite(ctx, userID, c.ID)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("remove favorite: %w", err)
	}
	if !found {
		return b.reply(textNotRemoved, b.mainKeyboard()), nil
	}

	return b.reply(textRemoved, b.mainKeyboard()), nil
}

func (b *Bot) favorites(ctx context.Context, userID int64) (messenger.Message, error) {
	favorites, err := b.store.Favorites(ctx, userID)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("list favorites: %w", err)
	}

	if len(favorites) == 0 {
		return b.reply(textNoFavorites, b.mainKeyboard()), nil
	}

	return b.reply(favoritesList(favorites), b.favoritesKeyboard()), nil
}

func (b *Bot) blacklist(ctx context.Context, userID int64) (messenger.Message, error) {
	c, early, err := b.current(ctx, userID)
	if err != nil || early != nil {
		return deref(early), err
	}

	if err := b.store.AddToBlacklist(ctx, userID, c.ID); err != nil {
		return messenger.Message{}, fmt.Errorf("add to blacklist: %w", err)
	}

	return b.reply(blacklisted(c), b.candidateKeyboard(c.ID)), nil
}

func (b *Bot) like(ctx context.Context, userID int64) (messenger.Message, error) {
	return b.toggleLike(ctx, userID, true)
}

func (b *Bot) unlike(ctx context.Context, userID int64) (messenger.Message, error) {
	return b.toggleLike(ctx, userID, false)
}

// toggleLike acts on the best stored photo of the current candidate.
func (b *Bot) toggleLike(ctx context.Context, userID int64, like bool) (messenger.Message, error) {
	c, early, err := b.current(ctx, userID)
	if err != nil || early != nil {
		return deref(early), err
	}

	photos, err := b.store.CandidatePhotos(ctx, c.ID, 1)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("load candidate photos: %w", err)
	}
	if len(photos) == 0 {
		return b.reply(textNoPhotos, b.candidateKeyboard(c.ID)), nil
	}
	photo := photos[0]

	var ok bool
	if like {
		ok, err = b.social.LikePhoto(ctx, photo.OwnerID, photo.ID)
	} else {
		ok, err = b.social.UnlikePhoto(ctx, photo.ID, photo.OwnerID)
	}
	if err != nil {
		return messenger.Message{}, fmt.Errorf("toggle like: %w", err)
	}

	text := textLiked
	switch {
	case like && !ok:
		text = textNotLiked
	case !like && ok:
		text = textUnliked
	case !like && !ok:
		text = textNotUnliked
	}

	return b.reply(text, b.candidateKeyboard(c.ID)), nil
}

func (b *Bot) suggestIcebreaker(ctx context.Context, userID int64) (messenger.Message, error) {
	if b.icebreaker == nil {
		return b.reply(textUnknown, b.mainKeyboard()), nil
	}

	c, early, err := b.current(ctx, userID)
	if err != nil || early != nil {
		return deref(early), err
	}

	user := b.knownUser(ctx, userID)
	common := b.commonGroups(ctx, userID, c.ID)

	suggestion, err := b.icebreaker.Suggest(ctx, ai.Pair{
		User:         user,
		Candidate:    c,
		CommonGroups: common,
		Score:        matching.Score(user, c, common),
	})
	if err != nil {
		return messenger.Message{}, fmt.Errorf("suggest first message: %w", err)
	}

	return b.reply(textIcebreaker+"\n\n"+suggestion, b.candidateKeyboard(c.ID)), nil
}

// ensureCandidate upserts the candidate row, keeping its stored photos, so a favorite
// can reference it even when saving it on display failed.
func (b *Bot) ensureCandidate(ctx context.Context, c profile.Candidate) error {
	photos, err := b.store.CandidatePhotos(ctx, c.ID, b.cfg.PhotoCount)
	if err != nil {
		return fmt.Errorf("load candidate photos: %w", err)
	}
	if err := b.store.SaveCandidate(ctx, c, photos); err != nil {
		return fmt.Errorf("save candidate: %w", err)
	}
	return nil
}

func deref(msg *messenger.Message) messenger.Message {
	if msg == nil {
		return messenger.Message{}
	}
	return *msg
}
