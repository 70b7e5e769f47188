package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

var scopes = []string{calendar.CalendarEventsScope}

const redirectURL = "http://localhost"

// OAuthConfig returns the OAuth client configuration. GOOGLE_CLIENT_ID and
// GOOGLE_CLIENT_SECRET in the environment (or a .env file) take precedence
// over the desktop client credentials file.
func OAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	clientID, clientSecret := os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	// #nosec G304 -- credentials path is user-configured
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	config, err := google.ConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return config, nil
}

// HTTPClient returns an authorized client from a previously saved token.
// Run Authorize first when the token file does not exist.
func HTTPClient(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	config, err := OAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token %s (run the auth command first): %w", tokenPath, err)
	}
	return config.Client(ctx, tok), nil
}

// Authorize runs the manual copy/paste flow: it prints the consent URL to
// out, reads the authorization code from in and saves the token.
func Authorize(ctx context.Context, credentialsPath, tokenPath string, in io.Reader, out io.Writer) error {
	config, err := OAuthConfig(credentialsPath)
	if err != nil {
		return err
	}
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	_, _ = fmt.Fprintf(out, "Open this URL in your browser and paste the authorization code:\n%v\n", authURL)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(tokenPath, tok)
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	// #nosec G304 -- token path is user-configured
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	var tok oauth2.Token
	if err := json.NewDecoder(file).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	// #nosec G304 -- token path is user-configured
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	return json.NewEncoder(file).Encode(token)
}
