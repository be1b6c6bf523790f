// ABOUTME: Google Calendar authorization CLI command
// ABOUTME: Runs the OAuth code flow and stores the token at the XDG path
package cli

import (
	"context"
	"flag"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/harperreed/leadbatch/sync"
)

// AuthCommand connects the Google Calendar account used for follow-up
// events. Without -code it prints the consent URL; with -code it exchanges
// the code and saves the token.
func AuthCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	code := fs.String("code", "", "Authorization code from the consent page")
	_ = fs.Parse(args)

	config := sync.NewOAuthConfig()
	if config.ClientID == "" || config.ClientSecret == "" {
		return fmt.Errorf("google OAuth credentials not configured; set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	if *code == "" {
		url := config.AuthCodeURL("state", oauth2.AccessTypeOffline)
		fmt.Printf("Open this URL in your browser, then re-run with -code:\n\n%s\n", url)
		return nil
	}

	token, err := config.Exchange(ctx, *code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := sync.SaveToken(token); err != nil {
		return err
	}

	fmt.Println("Calendar connected")
	return nil
}
