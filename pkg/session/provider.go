package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"tcgsync/pkg/auth"
	"tcgsync/pkg/config"
	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/retry"
	"tcgsync/pkg/tcgplayer"
)

// Options configures where the cookie set comes from and which hosts to talk to.
// Exactly one cookie source is used, in order: CookieHeader, CookiesFile, Account
// (looked up in Credentials), then the default account of Credentials.
type Options struct {
	PortalURL string
	APIURL    string
	StoreURL  string
	UserAgent string
	Timeout   time.Duration

	CookieHeader string
	CookiesFile  string
	Account      string
	Credentials  *auth.Manager

	Retry  *retry.Config
	Logger logger.Logger
}

// OptionsFromConfig maps the session section of the configuration
func OptionsFromConfig(cfg config.SessionConfig) Options {
	return Options{
		PortalURL:    cfg.PortalURL,
		APIURL:       cfg.APIURL,
		StoreURL:     cfg.StoreURL,
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.Timeout,
		CookieHeader: cfg.CookieHeader,
		CookiesFile:  cfg.CookiesFile,
		Account:      cfg.Account,
	}
}

// Provider builds validated sessions
type Provider struct {
	opts Options
	log  logger.Logger
}

func NewProvider(opts Options) *Provider {
	if opts.PortalURL == "" {
		opts.PortalURL = tcgplayer.DefaultPortalURL
	}
	if opts.APIURL == "" {
		opts.APIURL = tcgplayer.DefaultAPIURL
	}
	if opts.StoreURL == "" {
		opts.StoreURL = tcgplayer.DefaultStoreURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Provider{
		opts: opts,
		log:  logger.OrDefault(opts.Logger).WithField("component", "session"),
	}
}

// Get loads the cookie set, builds an HTTP client around it and checks that
// the seller dashboard accepts it. Credentials are never written back.
func (p *Provider) Get(ctx context.Context) (*Session, error) {
	account, err := p.loadAccount()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var live []auth.Cookie
	for _, c := range account.Cookies {
		if c.Expired(now) {
			p.log.WarnWithFields("Skipping expired cookie", map[string]interface{}{
				"cookie":  c.Name,
				"expired": c.Expires,
			})
			continue
		}
		live = append(live, c)
	}
	if len(live) == 0 {
		return nil, errs.NewAuthError("no session cookies supplied", 0)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	for _, host := range []string{p.opts.PortalURL, p.opts.APIURL, p.opts.StoreURL} {
		u, err := url.Parse(host)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeValidation, fmt.Sprintf("invalid site URL %q", host), err)
		}
		cookies := make([]*http.Cookie, 0, len(live))
		for _, c := range live {
			cookies = append(cookies, c.HTTPCookie())
		}
		jar.SetCookies(u, cookies)
	}

	userAgent := p.opts.UserAgent
	if account.UserAgent != "" {
		userAgent = account.UserAgent
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(p.opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")

	s := &Session{
		client:    client,
		portalURL: p.opts.PortalURL,
		apiURL:    p.opts.APIURL,
		storeURL:  p.opts.StoreURL,
		account:   account.Name,
		log:       p.log,
	}

	if err := p.validate(ctx, s); err != nil {
		return nil, err
	}

	p.log.InfoWithFields("Session validated", map[string]interface{}{
		"account": account.Name,
		"cookies": len(live),
	})
	return s, nil
}

func (p *Provider) validate(ctx context.Context, s *Session) error {
	dashboard := tcgplayer.DashboardURL(s.storeURL)

	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (*Page, error) {
		return s.GetHTML(ctx, dashboard)
	}, p.opts.Retry)
	if err != nil {
		return err
	}

	if looksSignedOut(page.Body) {
		return errs.NewAuthError("seller dashboard shows a sign-in form", 0)
	}
	return nil
}

func (p *Provider) loadAccount() (*auth.Account, error) {
	switch {
	case p.opts.CookieHeader != "":
		return &auth.Account{Name: "header", Cookies: auth.ParseCookieHeader(p.opts.CookieHeader)}, nil

	case p.opts.CookiesFile != "":
		cookies, err := auth.LoadCookieFile(p.opts.CookiesFile)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeAuth, "could not load cookie file", err)
		}
		return &auth.Account{Name: p.opts.CookiesFile, Cookies: cookies}, nil

	case p.opts.Credentials != nil && p.opts.Account != "":
		account, err := p.opts.Credentials.Retrieve(p.opts.Account)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeAuth, "stored account not found", err)
		}
		return account, nil

	case p.opts.Credentials != nil:
		account, err := p.opts.Credentials.RetrieveDefault()
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeAuth, "no session cookies supplied", err)
		}
		return account, nil

	default:
		return nil, errs.NewAuthError("no session cookies supplied", 0)
	}
}
