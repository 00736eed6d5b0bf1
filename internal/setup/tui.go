package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/foliosync/foliosync/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		mode       string
		redisAddr  string
		webAddr    string
		refreshStr string
		stocksURL  string
		newsURL    string
		confirm    bool
	)

	// defaults
	redisAddr = "localhost:6379"
	webAddr = ":8080"
	refreshStr = "1m"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("FOLIOSYNC CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your portfolio sync daemon.\n"))

	fmt.Println(stepStyle.Render("STEP 1: LEDGER STORE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should the holdings ledger live?").
				Options(
					huh.NewOption("Redis (production)", "redis"),
					huh.NewOption("In-memory (demo mode)", "demo"),
				).
				Value(&mode),
		),
	).Run()
	if err != nil {
		return err
	}

	if mode == "redis" {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Redis address").
					Value(&redisAddr).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("address is required")
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	fmt.Println(stepStyle.Render("STEP 2: REFRESH & WEB"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Auto refresh interval (e.g. 1m, 30s)").
				Value(&refreshStr).
				Validate(func(s string) error {
					if _, perr := time.ParseDuration(s); perr != nil {
						return fmt.Errorf("must be a valid duration")
					}
					return nil
				}),
			huh.NewInput().
				Title("Web/SSE listen address").
				Value(&webAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 3: OPTIONAL FEEDS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Stock quotes URL (empty to disable)").
				Value(&stocksURL),
			huh.NewInput().
				Title("News feed URL (empty to disable)").
				Value(&newsURL),
		),
	).Run()
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Ledger: %s\nRefresh: %s\nWeb: %s", mode, refreshStr, webAddr)
	if mode == "redis" {
		summary += fmt.Sprintf("\nRedis: %s", redisAddr)
	}
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	refresh, _ := time.ParseDuration(refreshStr)

	cfgTmp := config.ConfigTmp{
		DemoMode:        mode == "demo",
		WebAddr:         webAddr,
		RefreshInterval: refresh,
		StocksURL:       stocksURL,
		NewsURL:         newsURL,
	}
	if mode == "redis" {
		cfgTmp.RedisAddr = redisAddr
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting daemon...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}
