package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/vkinder/internal/matching"
	"github.com/spigell/vkinder/internal/messenger"
	"github.com/spigell/vkinder/internal/profile"
)

const (
	textWelcome = "Привет! Я бот VKinder и помогу тебе найти пару.\n" +
		"Используй кнопки ниже для управления:\n" +
		"• Найти пару - начать поиск\n" +
		"• Избранное - просмотреть сохранённые анкеты\n" +
		"• Помощь - показать это сообщение"
	textUnknown         = "Я не понимаю вашу команду. Используйте кнопки или введите 'помощь'."
	textFailure         = "Что-то пошло не так. Попробуйте позже."
	textNoProfile       = "Не удалось получить ваши данные"
	textNoCandidates    = "Не удалось найти подходящих кандидатов"
	textRestart         = "Начните поиск заново."
	textExhausted       = "Больше нет кандидатов. Начните новый поиск."
	textSearchFirst     = "Сначала найдите кандидатов."
	textAlreadyFavorite = "Этот кандидат уже в избранном!"
	textNoFavorites     = "У вас пока нет избранных кандидатов."
	textFavoritesHeader = "Ваши избранные кандидаты:"
	textRemoved         = "Удалено из избранного."
	textNotRemoved      = "Не удалось удалить из избранного."
	textNoPhotos        = "Нет доступных фото для лайка."
	textLiked           = "Лайк поставлен!"
	textNotLiked        = "Не удалось поставить лайк."
	textUnliked         = "Лайк убран."
	textNotUnliked      = "Не удалось убрать лайк."
	textIcebreaker      = "💬 Вариант первого сообщения:"

	notSpecified = "не указан"
)

func addedToFavorites(c profile.Candidate) string {
	return "Добавлено в избранное: " + c.FullName()
}

func blacklisted(c profile.Candidate) string {
	return fmt.Sprintf("Пользователь %s добавлен в чёрный список", c.FirstName)
}

func ageText(age *int) string {
	if age == nil {
		return notSpecified
	}
	return strconv.Itoa(*age)
}

func cityText(city string) string {
	if strings.TrimSpace(city) == "" {
		return notSpecified
	}
	return city
}

// candidateCard renders the candidate message shown while browsing.
func candidateCard(c profile.Candidate, commonGroups int, score float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n", c.FullName())
	fmt.Fprintf(&sb, "🎂 Возраст: %s\n", ageText(c.Age))
	fmt.Fprintf(&sb, "🏙️ Город: %s\n", cityText(c.City))
	fmt.Fprintf(&sb, "👥 Общие группы: %d\n", commonGroups)
	fmt.Fprintf(&sb, "🔗 Профиль: %s\n", c.ProfileURL)
	fmt.Fprintf(&sb, "💘 Совпадение: %s", matching.Percent(score))
	return sb.String()
}

func favoritesList(favorites []profile.Candidate) string {
	var sb strings.Builder
	sb.WriteString(textFavoritesHeader)
	sb.WriteString("\n\n")
	for _, f := range favorites {
		fmt.Fprintf(&sb, "%s\nВозраст: %s\nГород: %s\nСсылка: %s\n\n",
			f.FullName(), ageText(f.Age), cityText(f.City), f.ProfileURL)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) mainKeyboard() *messenger.Keyboard {
	return &messenger.Keyboard{
		Rows: [][]messenger.Button{
			{
				{Label: labelSearch, Color: messenger.ColorPrimary},
				{Label: labelFavorites, Color: messenger.ColorSecondary},
			},
			{
				{Label: labelHelp, Color: messenger.ColorPositive},
			},
		},
	}
}

func (b *Bot) candidateKeyboard(candidateID int64) *messenger.Keyboard {
	kb := &messenger.Keyboard{
		Inline: true,
		Rows: [][]messenger.Button{
			{
				{Label: labelAddFavorite, Color: messenger.ColorPositive},
				{Label: labelBlacklist, Color: messenger.ColorNegative},
			},
			{
				{Label: labelLike, Color: messenger.ColorPrimary},
				{Label: labelUnlike, Color: messenger.ColorSecondary},
			},
			{
				{Label: labelNext, Color: messenger.ColorSecondary},
			},
		},
	}

	if b.icebreaker != nil {
		kb.Rows = append(kb.Rows, []messenger.Button{{Label: labelIcebreaker, Color: messenger.ColorPrimary}})
	}
	if b.cfg.Debug {
		kb.Rows = append(kb.Rows, []messenger.Button{{Label: fmt.Sprintf("ID: %d", candidateID), Color: messenger.ColorSecondary}})
	}

	return kb
}

func (b *Bot) favoritesKeyboard() *messenger.Keyboard {
	return &messenger.Keyboard{
		Rows: [][]messenger.Button{
			{
				{Label: labelRemoveFavorite, Color: messenger.ColorNegative},
				{Label: labelBack, Color: messenger.ColorSecondary},
			},
		},
	}
}
