package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/estctiger/estctiger/config"
)

// runChat drives the terminal REPL. One session spans the whole run, so
// follow-up questions keep their context.
func runChat(cfg *config.Config) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s stock assistant", cfg.Symbol)))
	fmt.Println(hintStyle.Render("Ask about financials, stock performance, competitors, or RSUs. Type 'exit' to quit."))
	fmt.Println()

	sessionID := a.store.GetOrCreate("")

	for {
		var query string
		prompt := &survey.Input{Message: "You:"}
		if err := survey.AskOne(prompt, &query); err != nil {
			if err == terminal.InterruptErr {
				fmt.Println(hintStyle.Render("Goodbye."))
				return nil
			}
			return err
		}

		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			fmt.Println(hintStyle.Render("Goodbye."))
			return nil
		}
		if query == "clear" {
			a.store.Clear(sessionID)
			sessionID = a.store.GetOrCreate("")
			fmt.Println(hintStyle.Render("Conversation cleared."))
			continue
		}

		result, err := a.pipeline.Run(ctx, query, sessionID)
		if err != nil {
			fmt.Println(blockedStyle.Render(fmt.Sprintf("Error: %v", err)))
			continue
		}
		sessionID = result.SessionID

		fmt.Println()
		if result.Blocked {
			fmt.Println(blockedStyle.Render(result.Response))
		} else {
			fmt.Println(assistantStyle.Render(result.Response))
		}
		fmt.Println()
	}
}
