package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/messenger"
)

const (
	PromptType  = "Ввести текст"
	PromptExit  = "Выход"
	PromptStart = "начать"
)

var errExit = errors.New("exit requested")

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Talk to the bot from the terminal on behalf of a VK user",
	Run: func(cmd *cobra.Command, _ []string) {
		console(cmd)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().Int64P("user-id", "u", 0, "VK id of the user to act as")
	_ = consoleCmd.MarkFlagRequired("user-id")
}

// terminal prints replies and remembers the last keyboard for the next prompt.
type terminal struct {
	out      io.Writer
	keyboard *messenger.Keyboard
}

func (t *terminal) Send(_ context.Context, msg messenger.Message) {
	fmt.Fprintln(t.out, strings.Repeat("─", 40))
	fmt.Fprintln(t.out, msg.Text)
	for _, a := range msg.Attachments {
		fmt.Fprintf(t.out, "📎 https://vk.com/%s\n", a)
	}

	if msg.Keyboard != nil {
		t.keyboard = msg.Keyboard
	}
}

// ask shows the current keyboard and returns the chosen label or typed text.
func (t *terminal) ask() (string, error) {
	items := append(t.keyboard.Labels(), PromptType, PromptExit)

	selector := promptui.Select{
		Label: "Выберите действие",
		Items: items,
		Size:  len(items),
	}

	_, choice, err := selector.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", errExit
		}
		return "", err
	}

	switch choice {
	case PromptExit:
		return "", errExit
	case PromptType:
		input := promptui.Prompt{Label: "Сообщение"}
		text, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return "", errExit
			}
			return "", err
		}
		return text, nil
	default:
		return choice, nil
	}
}

func console(cmd *cobra.Command) {
	ctx := context.Background()

	logger := newLogger()
	config := mustConfig(logger)

	userID, err := cmd.Flags().GetInt64("user-id")
	if err != nil || userID <= 0 {
		logger.Fatal("a positive --user-id is required", zap.Error(err))
	}

	term := &terminal{out: os.Stdout}

	app, err := setup(ctx, config, logger, term)
	if err != nil {
		logger.Fatal("setting up the bot", zap.Error(err))
	}
	defer app.Close()

	app.bot.Dispatch(ctx, userID, PromptStart)

	for {
		text, err := term.ask()
		if errors.Is(err, errExit) {
			logger.Info("exiting", zap.String("reason", "got exit from prompt"))
			return
		}
		if err != nil {
			logger.Error("reading prompt", zap.Error(err))
			return
		}

		app.bot.Dispatch(ctx, userID, text)
	}
}
