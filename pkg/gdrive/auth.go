package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// AuthConfig selects how requests are authenticated. A service account key
// takes precedence over the installed-app OAuth flow.
type AuthConfig struct {
	ClientSecretsFile  string
	TokenFile          string
	ServiceAccountFile string
	// In and Out are used to prompt for an authorization code when no
	// cached token exists.
	In  io.Reader
	Out io.Writer
}

// ClientOptions returns the options that authenticate Drive requests.
// Any failure here is final; the caller does not retry it.
func ClientOptions(ctx context.Context, cfg AuthConfig) ([]option.ClientOption, error) {
	if cfg.ServiceAccountFile != "" {
		return []option.ClientOption{
			option.WithCredentialsFile(cfg.ServiceAccountFile),
			option.WithScopes(drive.DriveScope),
		}, nil
	}

	secrets, err := os.ReadFile(cfg.ClientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	conf, err := google.ConfigFromJSON(secrets, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}

	tok, err := loadToken(cfg.TokenFile)
	if err != nil {
		tok, err = authorize(ctx, conf, cfg.In, cfg.Out)
		if err != nil {
			return nil, err
		}
		if err := saveToken(cfg.TokenFile, tok); err != nil {
			return nil, err
		}
	}

	return []option.ClientOption{option.WithTokenSource(conf.TokenSource(ctx, tok))}, nil
}

func authorize(ctx context.Context, conf *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	if in == nil || out == nil {
		return nil, fmt.Errorf("no cached token and no terminal to authorize with")
	}
	url := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser:\n%s\nEnter the auth code: ", url)

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return nil, fmt.Errorf("read auth code: %w", err)
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange auth code: %w", err)
	}
	return tok, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
