package alert

import (
	"context"
	"log/slog"
	"strings"

	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/settings"
	"github.com/onnwee/thetaalert/telemetry"
)

// mentions builds the mention prefix for guildID. Roles made mentionable on the way are
// returned so they can be reset after the alert is sent.
func mentions(ctx context.Context, p chat.Platform, st settings.Store, guildID string, cfg settings.GuildConfig) (string, []chat.Role) {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("guild", guildID))
	var out []string
	if cfg.MentionEveryone {
		out = append(out, "@everyone")
	}
	if cfg.MentionHere {
		out = append(out, "@here")
	}

	roles, err := p.Roles(ctx, guildID)
	if err != nil {
		log.Debug("listing roles failed", slog.Any("err", err))
		return strings.Join(out, " "), nil
	}
	var canManage, checked bool
	var edited []chat.Role
	for _, role := range roles {
		on, err := st.RoleMention(ctx, guildID, role.ID)
		if err != nil {
			log.Debug("reading role mention failed", slog.String("role", role.ID), slog.Any("err", err))
			continue
		}
		if !on {
			continue
		}
		if !role.Mentionable {
			if !checked {
				canManage, err = p.CanManageRoles(ctx, guildID)
				if err != nil {
					log.Debug("permission lookup failed", slog.Any("err", err))
				}
				checked = true
			}
			if canManage {
				if err := p.SetRoleMentionable(ctx, guildID, role.ID, true); err != nil {
					// role hierarchy can still forbid the edit
					log.Debug("making role mentionable failed", slog.String("role", role.ID), slog.Any("err", err))
				} else {
					edited = append(edited, role)
				}
			}
		}
		out = append(out, role.Mention())
	}
	return strings.Join(out, " "), edited
}

// resetRoles makes edited roles unmentionable again. Failures are logged and skipped.
func resetRoles(ctx context.Context, p chat.Platform, guildID string, edited []chat.Role) {
	for _, role := range edited {
		if err := p.SetRoleMentionable(ctx, guildID, role.ID, false); err != nil {
			telemetry.LoggerWithCorr(ctx).Debug("resetting role mentionable failed",
				slog.String("guild", guildID), slog.String("role", role.ID), slog.Any("err", err))
		}
	}
}

// alertText is the message content posted with the embed. The default text runs the
// name through escape; guild templates get it verbatim.
func alertText(cfg settings.GuildConfig, mention, name string, escape func(string) string) string {
	if mention != "" {
		if cfg.LiveMessageMention != "" {
			return expand(cfg.LiveMessageMention, mention, name)
		}
		return mention + ", " + escape(name) + " is now live!"
	}
	if cfg.LiveMessageNoMention != "" {
		return expand(cfg.LiveMessageNoMention, "", name)
	}
	return escape(name) + " is now live!"
}

// expand fills a guild template. {theta.name} and {theta} are kept for templates
// written against older versions.
func expand(tmpl, mention, name string) string {
	return strings.NewReplacer(
		"{mention}", mention,
		"{stream.name}", name,
		"{theta.name}", name,
		"{stream}", name,
		"{theta}", name,
	).Replace(tmpl)
}
