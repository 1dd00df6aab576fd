package settings

import (
	"context"
	"fmt"
	"log/slog"
)

// MigrateLegacyTokens moves a client id found in the legacy tokens map into the
// credentials scope when no credentials are stored yet, then clears the legacy map.
// It reports whether credentials were moved.
func MigrateLegacyTokens(ctx context.Context, s Store) (bool, error) {
	legacy, err := s.LegacyTokens(ctx)
	if err != nil {
		return false, fmt.Errorf("read legacy tokens: %w", err)
	}
	if len(legacy) == 0 {
		return false, nil
	}
	current, err := s.Credentials(ctx)
	if err != nil {
		return false, fmt.Errorf("read credentials: %w", err)
	}
	moved := false
	if id := legacy[LegacyStreamTokenKey]; id != "" && current.Empty() {
		current.ClientID = id
		if err := s.SaveCredentials(ctx, current); err != nil {
			return false, fmt.Errorf("save migrated credentials: %w", err)
		}
		moved = true
		slog.Info("moved legacy theta client id into credentials", slog.String("component", "settings_migrate"))
	}
	if err := s.ClearLegacyTokens(ctx); err != nil {
		return moved, fmt.Errorf("clear legacy tokens: %w", err)
	}
	return moved, nil
}
