package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/ai"
	"github.com/spigell/vkinder/internal/logger"
	"github.com/spigell/vkinder/internal/messenger"
	"github.com/spigell/vkinder/internal/profile"
	"github.com/spigell/vkinder/internal/session"
)

const (
	defaultSearchLimit = 100
	defaultPhotoCount  = 3
)

// SocialAPI is the subset of the VK API the bot needs.
type SocialAPI interface {
	GetUser(ctx context.Context, userID int64) (profile.User, bool, error)
	SearchCandidates(ctx context.Context, user profile.User) ([]profile.Candidate, error)
	TopPhotos(ctx context.Context, ownerID int64, limit int) ([]profile.Photo, error)
	LikePhoto(ctx context.Context, ownerID, photoID int64) (bool, error)
	UnlikePhoto(ctx context.Context, photoID, ownerID int64) (bool, error)
	Groups(ctx context.Context, userID int64) (profile.IDSet, error)
}

// Store persists users, candidates, favorites and blacklists.
type Store interface {
	SaveUser(ctx context.Context, u profile.User) error
	GetUser(ctx context.Context, userID int64) (profile.User, error)
	SaveCandidate(ctx context.Context, c profile.Candidate, photos []profile.Photo) error
	CandidatePhotos(ctx context.Context, candidateID int64, limit int) ([]profile.Photo, error)
	AddFavorite(ctx context.Context, userID, candidateID int64) (bool, error)
	RemoveFavorite(ctx context.Context, userID, candidateID int64) (bool, error)
	Favorites(ctx context.Context, userID int64) ([]profile.Candidate, error)
	AddToBlacklist(ctx context.Context, userID, blockedID int64) error
	Blacklist(ctx context.Context, userID int64) (profile.IDSet, error)
}

// Observer records bot activity. *metrics.Metrics implements it.
type Observer interface {
	ObserveCommand(command string, took time.Duration, err error)
	ObserveSearch(candidates int)
	MessageSent()
}

type Config struct {
	// SearchLimit caps the candidates kept per search.
	SearchLimit int `mapstructure:"search-limit"`
	// PhotoCount is the number of photos attached to a candidate card.
	PhotoCount int `mapstructure:"photo-count"`
	// IncludeClosed keeps private profiles in search results.
	IncludeClosed bool `mapstructure:"include-closed"`
	// Debug adds the candidate id button to the candidate keyboard.
	Debug bool `mapstructure:"debug"`
}

// Deps are the collaborators of a Bot. Icebreaker and Observer are optional.
type Deps struct {
	Social     SocialAPI
	Store      Store
	Sessions   session.Store
	Sender     messenger.Sender
	Icebreaker ai.Icebreaker
	Observer   Observer
	Logger     *zap.Logger
}

type Bot struct {
	social     SocialAPI
	store      Store
	browser    *session.Browser
	sender     messenger.Sender
	icebreaker ai.Icebreaker
	observer   Observer
	logger     *zap.Logger
	cfg        Config
	commands   map[string]command
}

func New(deps Deps, cfg Config) *Bot {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	if cfg.PhotoCount <= 0 {
		cfg.PhotoCount = defaultPhotoCount
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}

	return &Bot{
		social:     deps.Social,
		store:      deps.Store,
		browser:    session.NewBrowser(sessions),
		sender:     deps.Sender,
		icebreaker: deps.Icebreaker,
		observer:   deps.Observer,
		logger:     log,
		cfg:        cfg,
		commands:   commandTable(deps.Icebreaker != nil),
	}
}

// Dispatch handles one inbound message and sends exactly one reply.
func (b *Bot) Dispatch(ctx context.Context, userID int64, text string) {
	cmd := b.parse(text)
	start := time.Now()

	reply, err := b.handle(ctx, cmd, userID)
	if err != nil {
		logger.WithFields(b.logger, logger.UserFields(userID, 0, string(cmd))...).
			Error("command failed", zap.Error(err))
		reply = b.reply(textFailure, b.mainKeyboard())
	}

	if b.observer != nil {
		b.observer.ObserveCommand(string(cmd), time.Since(start), err)
	}

	reply.UserID = userID
	b.sender.Send(ctx, reply)

	if b.observer != nil {
		b.observer.MessageSent()
	}
}

func (b *Bot) handle(ctx context.Context, cmd command, userID int64) (messenger.Message, error) {
	switch cmd {
	case cmdStart, cmdHelp, cmdBack:
		return b.reply(textWelcome, b.mainKeyboard()), nil
	case cmdSearch:
		return b.search(ctx, userID)
	case cmdFavorites:
		return b.favorites(ctx, userID)
	case cmdNext:
		return b.next(ctx, userID)
	case cmdAddFavorite:
		return b.addFavorite(ctx, userID)
	case cmdRemoveFavorite:
		return b.removeFavorite(ctx, userID)
	case cmdBlacklist:
		return b.blacklist(ctx, userID)
	case cmdLike:
		return b.like(ctx, userID)
	case cmdUnlike:
		return b.unlike(ctx, userID)
	case cmdIcebreaker:
		return b.suggestIcebreaker(ctx, userID)
	default:
		return b.reply(textUnknown, b.mainKeyboard()), nil
	}
}

func (b *Bot) reply(text string, kb *messenger.Keyboard, attachments ...string) messenger.Message {
	return messenger.Message{Text: text, Keyboard: kb, Attachments: attachments}
}
