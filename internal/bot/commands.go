package bot

import "strings"

type command string

const (
	cmdUnknown        command = "unknown"
	cmdStart          command = "start"
	cmdHelp           command = "help"
	cmdSearch         command = "search"
	cmdFavorites      command = "favorites"
	cmdAddFavorite    command = "add_favorite"
	cmdBlacklist      command = "blacklist"
	cmdLike           command = "like"
	cmdUnlike         command = "unlike"
	cmdNext           command = "next"
	cmdRemoveFavorite command = "remove_favorite"
	cmdBack           command = "back"
	cmdIcebreaker     command = "icebreaker"
)

// Button labels. Pressing a button sends its label back as text.
const (
	labelSearch         = "Найти пару"
	labelFavorites      = "Избранное"
	labelHelp           = "Помощь"
	labelAddFavorite    = "❤️ В избранное"
	labelBlacklist      = "👎 Чёрный список"
	labelLike           = "👍 Лайк фото"
	labelUnlike         = "💔 Убрать лайк"
	labelNext           = "➡️ Следующий"
	labelIcebreaker     = "💬 Первое сообщение"
	labelRemoveFavorite = "Удалить из избранного"
	labelBack           = "Назад"
)

func commandTable(withIcebreaker bool) map[string]command {
	synonyms := map[command][]string{
		cmdStart:          {"привет", "начать", "старт", "start"},
		cmdHelp:           {labelHelp, "help"},
		cmdSearch:         {labelSearch, "поиск"},
		cmdFavorites:      {labelFavorites, "favorites"},
		cmdAddFavorite:    {labelAddFavorite},
		cmdBlacklist:      {labelBlacklist},
		cmdLike:           {labelLike},
		cmdUnlike:         {labelUnlike},
		cmdNext:           {labelNext, "дальше"},
		cmdRemoveFavorite: {labelRemoveFavorite},
		cmdBack:           {labelBack, "отмена"},
	}
	if withIcebreaker {
		synonyms[cmdIcebreaker] = []string{labelIcebreaker}
	}

	table := make(map[string]command)
	for cmd, words := range synonyms {
		for _, w := range words {
			table[normalize(w)] = cmd
		}
	}
	return table
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func (b *Bot) parse(text string) command {
	if cmd, ok := b.commands[normalize(text)]; ok {
		return cmd
	}
	return cmdUnknown
}
