package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tcgsync/pkg/auth"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/session"
	"tcgsync/pkg/ui"
)

var (
	importCookies   string
	importUserAgent string
	importVerify    bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored seller sessions",
	Long: `Manage the browser sessions tcgsync uses to reach the seller portal.

An account is a named cookie set exported from a browser that is signed in
to the seller portal. Accounts are stored in:
  - the system keychain (when available)
  - an encrypted file with a PBKDF2-derived key

TCGSYNC_COOKIE_HEADER is read as an extra, unnamed account.`,
}

var importCmd = &cobra.Command{
	Use:   "import <name>",
	Short: "Store the cookies of a signed-in browser session",
	Long: `Store a cookie set under a name.

With --cookies the file is read as a JSON export (EditThisCookie, Cookie-Editor,
selenium) or a Netscape cookies.txt. Without it you are asked to paste the
Cookie request header of a seller portal request; input is hidden.`,
	Example: `  tcgsync auth import shop --cookies ~/Downloads/cookies.json
  tcgsync auth import shop --verify`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked cookie values",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a stored account",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(importCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(removeCmd)

	importCmd.Flags().StringVar(&importCookies, "cookies", "", "cookie export file")
	importCmd.Flags().StringVar(&importUserAgent, "user-agent", "", "user agent of the browser the cookies came from")
	importCmd.Flags().BoolVar(&importVerify, "verify", false, "check the cookies against the seller dashboard before storing")
}

func runImport(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var cookies []auth.Cookie
	if importCookies != "" {
		cookies, err = auth.LoadCookieFile(importCookies)
		if err != nil {
			return err
		}
	} else {
		auth.ShowCookieExportGuide(ui.Output)
		fmt.Fprint(ui.Output, "\nCookie header: ")
		header, err := readSecret()
		if err != nil {
			return fmt.Errorf("failed to read cookie header: %w", err)
		}
		cookies = auth.ParseCookieHeader(header)
		if len(cookies) == 0 {
			return errors.New("no cookies found in the pasted header")
		}
	}

	account := &auth.Account{
		Name:         name,
		Cookies:      cookies,
		UserAgent:    importUserAgent,
		LastModified: time.Now(),
	}

	if importVerify {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		opts := session.OptionsFromConfig(cfg.Session)
		opts.CookieHeader = account.CookieHeader()
		opts.CookiesFile = ""
		if account.UserAgent != "" {
			opts.UserAgent = account.UserAgent
		}
		opts.Logger = logger.GetLogger()
		if _, err := session.NewProvider(opts).Get(cmd.Context()); err != nil {
			return fmt.Errorf("the seller portal rejected these cookies: %w", err)
		}
		ui.PrintSuccess("Session verified against the seller dashboard")
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		ui.PrintWarning("Replacing stored account", name)
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s (%d cookies)", name, len(cookies)))
	fmt.Fprintf(ui.Output, "\nUse it with:\n  tcgsync extract --account %s --from <date> --to <date>\n", name)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'tcgsync auth import <name>' to add one")
		return nil
	}

	t := ui.NewTable(ui.Output)
	t.AppendHeader(table.Row{"Account", "Cookies", "Sample", "Modified"})
	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		sample := ""
		if len(sanitized.Cookies) > 0 {
			sample = sanitized.Cookies[0].Name + "=" + sanitized.Cookies[0].Value
		}
		t.AppendRow(table.Row{sanitized.Name, len(sanitized.Cookies), sample, sanitized.LastModified.Format("2006-01-02 15:04:05")})
	}
	t.Render()
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + args[0])
	return nil
}

// readSecret reads one line from stdin without echo when it is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Output)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
