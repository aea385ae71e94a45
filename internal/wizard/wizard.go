// Package wizard provides the interactive terminal setup wizard for jejecipher.
// Invoke with: jejecipher setup
package wizard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/yourusername/jejecipher/internal/platform"
)

// Answers holds all values collected during the wizard.
type Answers struct {
	Port           string
	AdminUsername  string
	AdminPassword  string
	WorkDir        string
	TelegramToken  string
	TelegramChatID string
	RetentionDays  int
}

// Wizard runs the prompts against a reader and writer.
type Wizard struct {
	in      *bufio.Reader
	out     io.Writer
	color   bool
	envPath string

	// readPassword reads a secret without echo when stdin is a terminal.
	readPassword func() (string, error)
	// portFree and pairTelegram are swapped out in tests.
	portFree     func(int) bool
	pairTelegram func(ctx context.Context, token string, lines <-chan string) (chatID int64, name string, err error)
}

// New creates a Wizard reading from in and writing to out. The .env file is
// written to envPath.
func New(in io.Reader, out io.Writer, envPath string) *Wizard {
	w := &Wizard{
		in:       bufio.NewReader(in),
		out:      out,
		envPath:  envPath,
		portFree: platform.PortFree,
	}
	w.readPassword = w.readLine
	w.pairTelegram = w.pairTelegramAPI
	return w
}

// Run executes the wizard on the terminal and writes .env to the current
// working directory.
func Run(version string) error {
	w := New(os.Stdin, os.Stdout, ".env")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		w.readPassword = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(w.out)
			return string(b), err
		}
	}
	w.color = term.IsTerminal(int(os.Stdout.Fd()))
	return w.Run(version)
}

// Run executes the 6-step setup.
func (w *Wizard) Run(version string) error {
	w.printBanner(version)

	a := &Answers{}
	var err error

	if a.Port, err = w.stepPort(); err != nil {
		return fmt.Errorf("wizard: port: %w", err)
	}
	if a.AdminUsername, a.AdminPassword, err = w.stepAdmin(); err != nil {
		return fmt.Errorf("wizard: admin: %w", err)
	}
	if a.WorkDir, err = w.stepWorkDir(); err != nil {
		return fmt.Errorf("wizard: workdir: %w", err)
	}
	if a.TelegramToken, a.TelegramChatID, err = w.stepTelegram(); err != nil {
		return fmt.Errorf("wizard: telegram: %w", err)
	}
	if a.RetentionDays, err = w.stepRetention(); err != nil {
		return fmt.Errorf("wizard: retention: %w", err)
	}
	if !w.stepConfirm(a) {
		fmt.Fprintln(w.out, "\n  Cancelled, no changes made.")
		return nil
	}
	if err := WriteEnv(w.envPath, a); err != nil {
		return fmt.Errorf("wizard: %w", err)
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "  "+w.c("\033[32m", "✓")+" "+w.envPath+" saved. Run jejecipher serve to start.")
	PrintDashboardURLs(w.out, a.Port)
	return nil
}

// ── Banner ────────────────────────────────────────────────────────────────────

func (w *Wizard) printBanner(version string) {
	const width = 56
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, w.c("\033[36m", "╔"+strings.Repeat("═", width)+"╗"))
	w.bannerLine("", width)
	w.bannerLine("  jejecipher "+version, width)
	w.bannerLine("  7~4₵(C) #L~0££~3[-](C)", width)
	w.bannerLine("", width)
	fmt.Fprintln(w.out, w.c("\033[36m", "╚"+strings.Repeat("═", width)+"╝"))
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "  Six short steps. Press Enter to accept defaults, Ctrl+C to cancel.")
}

func (w *Wizard) bannerLine(text string, width int) {
	pad := width - len([]rune(text))
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintln(w.out, w.c("\033[36m", "║")+text+strings.Repeat(" ", pad)+w.c("\033[36m", "║"))
}

func (w *Wizard) header(step int, title string) {
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, w.c("\033[33m", fmt.Sprintf("━━━  %d / 6  ·  %s  ━━━━━━━━━━━━━━━━━━━━━━━━", step, title)))
	fmt.Fprintln(w.out)
}

// ── Step 1: Port ──────────────────────────────────────────────────────────────

var candidatePorts = []int{8080, 8081, 8082, 3000, 8000, 9000, 9090}

func (w *Wizard) stepPort() (string, error) {
	for {
		w.header(1, "PORT")

		defaultPort := 0
		fmt.Fprintf(w.out, "  %-6s  %s\n", "PORT", "STATUS")
		for _, p := range candidatePorts {
			status := w.c("\033[31m", "● in use")
			if w.portFree(p) {
				status = w.c("\033[32m", "○ free")
				if defaultPort == 0 {
					defaultPort = p
					status += "  " + w.c("\033[33m", "← default")
				}
			}
			fmt.Fprintf(w.out, "  %6d  %s\n", p, status)
		}
		if defaultPort == 0 {
			defaultPort = 8080
		}

		fmt.Fprintln(w.out)
		portStr, err := w.prompt(fmt.Sprintf("Listen port [%d]", defaultPort), strconv.Itoa(defaultPort))
		if err != nil {
			return "", err
		}
		portNum, err := strconv.Atoi(strings.TrimSpace(portStr))
		if err != nil || portNum < 1 || portNum > 65535 {
			fmt.Fprintln(w.out, "  "+w.c("\033[31m", "✗")+" Invalid port, enter a number 1-65535.")
			continue
		}
		if !w.portFree(portNum) {
			ans, err := w.prompt(fmt.Sprintf("Port %d is in use. Use it anyway? [y/N]", portNum), "N")
			if err != nil {
				return "", err
			}
			if !yes(ans) {
				continue
			}
		}
		return strconv.Itoa(portNum), nil
	}
}

// ── Step 2: Admin ─────────────────────────────────────────────────────────────

func (w *Wizard) stepAdmin() (username, password string, err error) {
	w.header(2, "ADMIN ACCOUNT")

	if username, err = w.prompt("Username [admin]", "admin"); err != nil {
		return "", "", err
	}
	for {
		fmt.Fprint(w.out, "  Password: ")
		pass, err := w.readPassword()
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(w.out, "  Confirm:  ")
		confirm, err := w.readPassword()
		if err != nil {
			return "", "", fmt.Errorf("read password confirm: %w", err)
		}
		if pass != confirm {
			fmt.Fprintln(w.out, "  "+w.c("\033[31m", "✗")+" Passwords do not match, try again.")
			continue
		}
		if len(pass) < 8 {
			fmt.Fprintln(w.out, "  "+w.c("\033[31m", "✗")+" Use at least 8 characters.")
			continue
		}
		return username, pass, nil
	}
}

// ── Step 3: Work directory ────────────────────────────────────────────────────

func (w *Wizard) stepWorkDir() (string, error) {
	w.header(3, "WORK DIRECTORY")

	defaultDir := platform.DefaultWorkDir()
	fmt.Fprintf(w.out, "  History database and logs live here.\n  Recommended for your OS: %s\n\n", w.c("\033[36m", defaultDir))

	dir, err := w.prompt(fmt.Sprintf("Path [%s]", defaultDir), defaultDir)
	if err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}

// ── Step 4: Telegram ──────────────────────────────────────────────────────────

func (w *Wizard) stepTelegram() (token, chatID string, err error) {
	w.header(4, "TELEGRAM  (Enter to skip)")
	fmt.Fprintln(w.out, "  Create a bot at https://t.me/BotFather, then paste the token.")
	fmt.Fprintln(w.out, "  The bot answers /encode and /decode and delivers login codes.")
	fmt.Fprintln(w.out)

	if token, err = w.prompt("Bot Token (Enter to skip)", ""); err != nil {
		return "", "", err
	}
	if token == "" {
		fmt.Fprintln(w.out, "  "+w.c("\033[90m", "Skipped. Set TELEGRAM_TOKEN in .env later."))
		return "", "", nil
	}

	// Lines typed while pairing go through this channel so the Enter-to-skip
	// read never races a later prompt.
	lines := make(chan string, 1)
	go func() {
		line, err := w.in.ReadString('\n')
		if err != nil && line == "" {
			close(lines)
			return
		}
		lines <- line
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	id, name, err := w.pairTelegram(ctx, token, lines)
	if err != nil || id == 0 {
		msg := "Skipped. Set TELEGRAM_CHAT_ID in .env later."
		if err != nil && !errors.Is(err, errSkipped) {
			msg = "Pairing failed (" + err.Error() + "). Fix TELEGRAM_* in .env later."
		}
		fmt.Fprintln(w.out, "  "+w.c("\033[90m", msg))
		return token, "", nil
	}

	chatID = strconv.FormatInt(id, 10)
	fmt.Fprintf(w.out, "  %s Paired with %s  (Chat ID: %s)\n", w.c("\033[32m", "✓"), name, chatID)
	fmt.Fprint(w.out, "  Press Enter to continue.")
	<-lines
	return token, chatID, nil
}

var errSkipped = errors.New("skipped")

// pairTelegramAPI verifies the token and waits for the first message sent to
// the bot, returning its chat. A line on lines skips the wait.
func (w *Wizard) pairTelegramAPI(ctx context.Context, token string, lines <-chan string) (int64, string, error) {
	fmt.Fprint(w.out, "  Verifying token...")
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		fmt.Fprintln(w.out, " failed. Press Enter to continue.")
		<-lines
		return 0, "", err
	}
	fmt.Fprintf(w.out, "\r  %s Bot: @%s (%s)\n\n", w.c("\033[32m", "✓"), api.Self.UserName, api.Self.FirstName)
	fmt.Fprintf(w.out, "  Open Telegram and send any message to @%s\n", w.c("\033[36m", api.Self.UserName))
	fmt.Fprintln(w.out, "  Waiting up to 3 minutes... (press Enter to skip)")

	type found struct {
		id   int64
		name string
	}
	results := make(chan found, 1)
	go func() {
		offset := 0
		for ctx.Err() == nil {
			updates, err := api.GetUpdates(tgbotapi.UpdateConfig{Offset: offset, Limit: 1, Timeout: 10})
			if err != nil {
				time.Sleep(2 * time.Second)
				continue
			}
			for _, u := range updates {
				offset = u.UpdateID + 1
				if u.Message != nil {
					name := ""
					if u.Message.From != nil {
						name = u.Message.From.FirstName
					}
					results <- found{u.Message.Chat.ID, name}
					return
				}
			}
		}
	}()

	select {
	case f := <-results:
		return f.id, f.name, nil
	case <-lines:
		return 0, "", errSkipped
	case <-ctx.Done():
		fmt.Fprintln(w.out, "  Timed out. Press Enter to continue.")
		<-lines
		return 0, "", ctx.Err()
	}
}

// ── Step 5: Retention ─────────────────────────────────────────────────────────

func (w *Wizard) stepRetention() (int, error) {
	w.header(5, "HISTORY RETENTION")
	fmt.Fprintln(w.out, "  Every encode and decode is kept in history. Older entries are pruned nightly.")
	fmt.Fprintln(w.out, "  0 keeps everything.")
	fmt.Fprintln(w.out)
	return w.promptInt("Days to keep [30]", 0, 3650, 30)
}

// ── Step 6: Confirm ───────────────────────────────────────────────────────────

func (w *Wizard) stepConfirm(a *Answers) bool {
	w.header(6, "CONFIRM")

	rows := [][2]string{
		{"PORT", a.Port},
		{"ADMIN", a.AdminUsername},
		{"WORK DIR", a.WorkDir},
		{"TELEGRAM", w.dash(mask(a.TelegramToken))},
		{"CHAT ID", w.dash(a.TelegramChatID)},
		{"RETENTION", strconv.Itoa(a.RetentionDays) + " days"},
	}
	for _, r := range rows {
		fmt.Fprintf(w.out, "  %-12s %s\n", r[0], r[1])
	}
	fmt.Fprintln(w.out)

	ans, err := w.prompt("Save to .env? [Y/n]", "Y")
	return err == nil && yes(ans)
}

func (w *Wizard) dash(s string) string {
	if s == "" {
		return w.c("\033[90m", "-")
	}
	return s
}

func mask(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:4] + strings.Repeat("*", 8) + token[len(token)-4:]
}

// ── Write .env ────────────────────────────────────────────────────────────────

// WriteEnv writes the collected answers as KEY=VALUE lines.
func WriteEnv(path string, a *Answers) error {
	body, err := godotenv.Marshal(map[string]string{
		"PORT":                      a.Port,
		"WORK_DIR":                  a.WorkDir,
		"DB_PATH":                   filepath.Join(a.WorkDir, "jejecipher.db"),
		"ADMIN_USERNAME":            a.AdminUsername,
		"ADMIN_PASSWORD":            a.AdminPassword,
		"TELEGRAM_TOKEN":            a.TelegramToken,
		"TELEGRAM_CHAT_ID":          a.TelegramChatID,
		"SESSION_EXPIRY_HOURS":      "24",
		"BRUTE_FORCE_MAX_ATTEMPTS":  "5",
		"BRUTE_FORCE_BLOCK_MINUTES": "15",
		"HISTORY_RETENTION_DAYS":    strconv.Itoa(a.RetentionDays),
		"PRUNE_CRON":                "0 0 3 * * *",
	})
	if err != nil {
		return fmt.Errorf("WriteEnv: %w", err)
	}
	content := "# jejecipher configuration\n" +
		"# Generated: " + time.Now().Format(time.RFC3339) + "\n" +
		body + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("WriteEnv: %w", err)
	}
	return nil
}

// ── Dashboard URLs ────────────────────────────────────────────────────────────

// PrintDashboardURLs prints LAN IPs + localhost. Called by serve on every start.
func PrintDashboardURLs(out io.Writer, port string) {
	var urls []string
	for _, ip := range platform.LANAddrs() {
		urls = append(urls, fmt.Sprintf("http://%s:%s", ip, port))
	}
	urls = append(urls, fmt.Sprintf("http://localhost:%s", port))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  API → %s\n", urls[0])
	for _, u := range urls[1:] {
		fmt.Fprintf(out, "        %s\n", u)
	}
	fmt.Fprintln(out)
}

// ── Input helpers ─────────────────────────────────────────────────────────────

func (w *Wizard) readLine() (string, error) {
	line, err := w.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (w *Wizard) prompt(label, defaultVal string) (string, error) {
	fmt.Fprintf(w.out, "  %s: ", label)
	line, err := w.readLine()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) == "" {
		return defaultVal, nil
	}
	return line, nil
}

func (w *Wizard) promptInt(label string, min, max, defaultVal int) (int, error) {
	for {
		s, err := w.prompt(label, strconv.Itoa(defaultVal))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil && n >= min && n <= max {
			return n, nil
		}
		fmt.Fprintf(w.out, "  Enter a number between %d and %d.\n", min, max)
	}
}

func yes(ans string) bool {
	switch strings.ToUpper(strings.TrimSpace(ans)) {
	case "Y", "YES":
		return true
	}
	return false
}

func (w *Wizard) c(ansi, text string) string {
	if !w.color {
		return text
	}
	return ansi + text + "\033[0m"
}
