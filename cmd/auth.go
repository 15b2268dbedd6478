package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/term"
	drivev3 "google.golang.org/api/drive/v3"

	"driveindex/internal/sources/google/drive"
	"driveindex/pkg/models"
)

const tokenEnvVar = "DRIVEINDEX_ACCESS_TOKEN"

// resolveTokenSource picks credentials in order: --token flag, environment,
// config file, interactive prompt, then application default credentials.
func resolveTokenSource(ctx context.Context, cfg *models.Config) (oauth2.TokenSource, error) {
	if accessToken != "" {
		logger.Debug("Using access token from flag")

		return drive.StaticTokenSource(accessToken), nil
	}

	if token := strings.TrimSpace(os.Getenv(tokenEnvVar)); token != "" {
		logger.Debug("Using access token from environment", zap.String("var", tokenEnvVar))

		return drive.StaticTokenSource(token), nil
	}

	if cfg != nil && cfg.Auth.AccessToken != "" {
		logger.Debug("Using access token from config")

		return drive.StaticTokenSource(cfg.Auth.AccessToken), nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		token, err := promptToken()
		if err != nil {
			return nil, err
		}

		if token != "" {
			return drive.StaticTokenSource(token), nil
		}
	}

	ts, err := google.DefaultTokenSource(ctx, drivev3.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("no access token: use --token, set %s, or configure application default credentials: %w",
			tokenEnvVar, err)
	}

	logger.Debug("Using application default credentials")

	return ts, nil
}

func promptToken() (string, error) {
	fmt.Fprint(os.Stderr, "Google Drive access token (empty to use application default credentials): ")

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}

	return strings.TrimSpace(string(raw)), nil
}
