package config

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/scalesync/internal/logging"
)

// Environment overlay variables. The overlay targets the configured user
// whose username equals XM_USERNAME; it never applies positionally.
const (
	EnvSourceUsername  = "XM_USERNAME"
	EnvSourcePassword  = "XM_PWD"
	EnvSourceUserID    = "XM_USERID"
	EnvSourcePassToken = "XM_PASS_TOKEN"
	EnvSourceSSecurity = "XM_SSECURITY"
	EnvGarminEmail     = "GM_USERNAME"
	EnvGarminPassword  = "GM_PWD"
)

// ApplyEnvOverlay overlays credential fields from the environment onto the
// user identified by XM_USERNAME. A .env file in the working directory is
// loaded first (missing file is fine). When XM_USERNAME is unset the overlay
// is a no-op; when it is set but matches no configured user, a warning is
// logged and nothing changes — the overlay is in-memory only and is never
// written back to the store.
func (s *Store) ApplyEnvOverlay(ctx context.Context, log logging.Logger) {
	_ = godotenv.Load()

	username := os.Getenv(EnvSourceUsername)
	if username == "" {
		return
	}

	u := s.detachUser(username)
	if u == nil {
		log.Warn(ctx, "environment overlay names an unknown user, skipping",
			"username", username)
		return
	}

	log.Info(ctx, "applying environment credential overlay", "username", username)
	overlayString(&u.Password, EnvSourcePassword)
	overlayString(&u.Token.UserID, EnvSourceUserID)
	overlayString(&u.Token.PassToken, EnvSourcePassToken)
	overlayString(&u.Token.SSecurity, EnvSourceSSecurity)
	overlayString(&u.Garmin.Email, EnvGarminEmail)
	overlayString(&u.Garmin.Password, EnvGarminPassword)
}

func overlayString(dst *string, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		*dst = v
	}
}
