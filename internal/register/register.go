// Package register is the account-creation subsystem: it detects
// registration forms on a page, fills them with generated credentials, and
// submits them through a headless browser. It sits outside the crawl core:
// the crawler only flags pages with HasRegisterForm; registration runs on
// demand via the auto-register subcommand.
package register

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Credentials are the generated identity for one registration attempt.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// Result reports what happened on one registration attempt.
type Result struct {
	URL       string
	Submitted bool
	FinalURL  string
	Notes     string
}

// Registrar drives a headless browser against registration forms.
type Registrar struct {
	browser *rod.Browser
	proxy   string
	logger  *slog.Logger
}

// New launches a headless browser. proxyAddr, when set, is a SOCKS5 gateway
// (host:port) the browser routes through, required for .onion targets.
func New(proxyAddr string, logger *slog.Logger) (*Registrar, error) {
	l := launcher.New().Headless(true)
	if proxyAddr != "" {
		l = l.Proxy("socks5://" + proxyAddr)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &Registrar{
		browser: browser,
		proxy:   proxyAddr,
		logger:  logger.With("component", "registrar"),
	}, nil
}

// Close shuts the browser down.
func (r *Registrar) Close() error {
	return r.browser.Close()
}

// GenerateCredentials produces a throwaway identity.
func GenerateCredentials() Credentials {
	suffix := rand.Intn(900000) + 100000
	username := fmt.Sprintf("user%d", suffix)
	return Credentials{
		Username: username,
		Email:    username + "@tutanota.com",
		Password: fmt.Sprintf("Vc!%d%s", rand.Intn(90000)+10000, randLetters(6)),
	}
}

func randLetters(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// Register opens targetURL, finds a registration form, fills it with creds,
// and submits. The page is given generous timeouts; overlay-network round
// trips are slow.
func (r *Registrar) Register(targetURL string, creds Credentials) (*Result, error) {
	if _, err := url.Parse(targetURL); err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	result := &Result{URL: targetURL}

	page, err := stealth.Page(r.browser)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	page = page.Timeout(90 * time.Second)
	if err := page.Navigate(targetURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	form, err := r.findRegisterForm(page)
	if err != nil {
		result.Notes = "no registration form found"
		return result, nil
	}

	if err := r.fillForm(form, creds); err != nil {
		return nil, fmt.Errorf("fill form: %w", err)
	}

	if err := r.submit(page, form); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	result.Submitted = true

	// Give the site a moment to redirect or render a confirmation.
	page.WaitRequestIdle(10*time.Second, nil, nil, nil)()
	if info, err := page.Info(); err == nil {
		result.FinalURL = info.URL
	}

	r.logger.Info("registration submitted", "url", targetURL, "final_url", result.FinalURL)
	return result, nil
}

// findRegisterForm returns the first form, in page order, that has either two
// password fields or one password field plus register/signup wording.
func (r *Registrar) findRegisterForm(page *rod.Page) (*rod.Element, error) {
	forms, err := page.Elements("form")
	if err != nil || len(forms) == 0 {
		return nil, fmt.Errorf("no forms on page")
	}

	for _, form := range forms {
		passwords, err := form.Elements(`input[type='password']`)
		if err != nil || len(passwords) == 0 {
			continue
		}
		if len(passwords) >= 2 {
			return form, nil
		}
		html, err := form.HTML()
		if err != nil {
			continue
		}
		lower := strings.ToLower(html)
		if strings.Contains(lower, "register") || strings.Contains(lower, "signup") ||
			strings.Contains(lower, "sign up") || strings.Contains(lower, "create account") {
			return form, nil
		}
	}
	return nil, fmt.Errorf("no registration form")
}

// fillForm types credentials into the form's inputs, classifying each field
// by type and name.
func (r *Registrar) fillForm(form *rod.Element, creds Credentials) error {
	inputs, err := form.Elements("input")
	if err != nil {
		return err
	}

	passwordsFilled := 0
	for _, field := range inputs {
		inputType := strings.ToLower(attrOr(field, "type", "text"))
		name := strings.ToLower(attrOr(field, "name", ""))

		var value string
		switch {
		case inputType == "password":
			value = creds.Password
			passwordsFilled++
		case inputType == "email" || strings.Contains(name, "email") || strings.Contains(name, "mail"):
			value = creds.Email
		case inputType == "text" && (strings.Contains(name, "user") || strings.Contains(name, "login") || strings.Contains(name, "name")):
			value = creds.Username
		case inputType == "checkbox":
			// Terms-of-service boxes need ticking for the submit to pass.
			if strings.Contains(name, "terms") || strings.Contains(name, "agree") || strings.Contains(name, "tos") {
				_ = field.Click(proto.InputMouseButtonLeft, 1)
			}
			continue
		default:
			continue
		}

		if err := field.SelectAllText(); err == nil {
			_ = field.Input("")
		}
		if err := field.Input(value); err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if passwordsFilled == 0 {
		return fmt.Errorf("no password field filled")
	}
	return nil
}

// submit clicks the form's submit control, falling back to keyboard Enter.
func (r *Registrar) submit(page *rod.Page, form *rod.Element) error {
	btn, err := form.Element(`[type='submit'], button`)
	if err == nil {
		return btn.Click(proto.InputMouseButtonLeft, 1)
	}
	field, err := form.Element("input")
	if err != nil {
		return fmt.Errorf("nothing to submit")
	}
	if err := field.Focus(); err != nil {
		return err
	}
	return page.Keyboard.Press(input.Enter)
}

func attrOr(el *rod.Element, name, fallback string) string {
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return fallback
	}
	return *v
}
