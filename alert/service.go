package alert

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/config"
	"github.com/onnwee/thetaalert/settings"
	"github.com/onnwee/thetaalert/stream"
	"github.com/onnwee/thetaalert/subscription"
	"github.com/onnwee/thetaalert/telemetry"
	"github.com/onnwee/thetaalert/thetaapi"
)

var channelMention = regexp.MustCompile(`^<#\d+>$`)

// Service implements the user commands: checks, subscription toggles and guild settings.
// Every mutation of the subscription set is flushed before returning.
type Service struct {
	Store    *subscription.Store
	Settings settings.Store
	Platform chat.Platform
	Tokens   *thetaapi.TokenSource
	Deps     stream.Deps
}

// Init prepares the service at startup: legacy credentials are migrated, stored
// credentials (or fallback when none are stored) are applied to the token source, a
// first token is requested, and the subscription set is loaded.
func (s *Service) Init(ctx context.Context, fallback settings.Credentials) error {
	if _, err := settings.MigrateLegacyTokens(ctx, s.Settings); err != nil {
		slog.Warn("legacy credential migration failed", slog.Any("err", err))
	}
	creds, err := s.Settings.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds.Empty() {
		creds = fallback
	}
	s.Tokens.SetCredentials(creds.ClientID, creds.ClientSecret, creds.AccessToken)
	if err := s.Tokens.RefreshIfNeeded(ctx); err != nil {
		slog.Warn("initial token request failed", slog.Any("err", err))
	}
	return s.Store.Load(ctx)
}

func (s *Service) refresh(ctx context.Context) {
	if err := s.Tokens.RefreshIfNeeded(ctx); err != nil {
		telemetry.LoggerWithCorr(ctx).Debug("token refresh failed, checking with the cached token", slog.Any("err", err))
	}
}

// CheckResult is the answer to a synchronous check: an embed when live, else a message.
type CheckResult struct {
	Outcome stream.Outcome
	Embed   *chat.Embed
	Message string
}

// Check queries nameOrID right now. Reruns count as offline when guildID ignores reruns.
func (s *Service) Check(ctx context.Context, guildID, nameOrID string) (CheckResult, error) {
	s.refresh(ctx)
	res := stream.NewTheta(strings.TrimSpace(nameOrID), s.Deps).Check(ctx)
	if res.Outcome != stream.Online {
		return CheckResult{Outcome: res.Outcome, Message: UserMessage(res.Outcome)}, nil
	}
	if res.Rerun && guildID != "" {
		cfg, err := s.Settings.Guild(ctx, guildID)
		if err != nil {
			return CheckResult{}, err
		}
		if cfg.IgnoreReruns {
			return CheckResult{Outcome: stream.Offline, Message: UserMessage(stream.Offline)}, nil
		}
	}
	return CheckResult{Outcome: stream.Online, Embed: res.Embed}, nil
}

// ToggleResult reports what ToggleAlert did.
type ToggleResult struct {
	Name  string
	Added bool
}

// Message is the confirmation shown to the user.
func (r ToggleResult) Message() string {
	if r.Added {
		return fmt.Sprintf("I'll now send a notification in this channel when %s is live.", r.Name)
	}
	return fmt.Sprintf("I won't send notifications about %s in this channel anymore.", r.Name)
}

// ToggleAlert subscribes channelID to nameOrID, or unsubscribes it if already subscribed.
// Streams not yet tracked are verified first; an offline stream counts as existing.
func (s *Service) ToggleAlert(ctx context.Context, channelID, nameOrID string) (ToggleResult, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	if channelMention.MatchString(nameOrID) {
		return ToggleResult{}, ErrChannelMention
	}
	if nameOrID == "" {
		return ToggleResult{}, fmt.Errorf("stream name is required")
	}
	if _, err := s.Platform.ChannelGuild(ctx, channelID); err != nil {
		return ToggleResult{}, err
	}

	var st stream.Stream
	if sub := s.Store.Find(stream.ThetaType, nameOrID); sub != nil {
		st = sub.Stream
	} else {
		s.refresh(ctx)
		candidate := stream.NewTheta(nameOrID, s.Deps)
		res := candidate.Check(ctx)
		if res.Outcome != stream.Online && res.Outcome != stream.Offline {
			return ToggleResult{}, checkError(res)
		}
		// both halves of the identity are needed to spot a stream tracked under the other one
		if err := candidate.Resolve(ctx); err != nil {
			telemetry.LoggerWithCorr(ctx).Debug("resolving stream identity failed", slog.String("stream", nameOrID), slog.Any("err", err))
		}
		st = candidate
	}

	added := s.Store.Toggle(st, channelID)
	if err := s.Store.Flush(ctx); err != nil {
		return ToggleResult{}, err
	}
	return ToggleResult{Name: st.Name(), Added: added}, nil
}

// Quit unsubscribes channelID from every stream, or every channel of its guild when guildWide.
func (s *Service) Quit(ctx context.Context, channelID string, guildWide bool) (int, error) {
	set := map[string]bool{channelID: true}
	if guildWide {
		guild, err := s.Platform.ChannelGuild(ctx, channelID)
		if err != nil {
			return 0, err
		}
		chs, err := s.Platform.GuildChannels(ctx, guild)
		if err != nil {
			return 0, err
		}
		for _, c := range chs {
			set[c] = true
		}
	}
	removed := s.Store.RemoveChannels(set)
	if err := s.Store.Flush(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// List returns, per channel of guildID, the streams it alerts on.
func (s *Service) List(ctx context.Context, guildID string) (map[string][]string, error) {
	chs, err := s.Platform.GuildChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(chs))
	for _, c := range chs {
		set[c] = true
	}
	return s.Store.ByChannel(set), nil
}

// SetRefreshInterval stores the polling interval.
func (s *Service) SetRefreshInterval(ctx context.Context, d time.Duration) error {
	if d < config.MinRefreshInterval {
		return ErrIntervalTooShort
	}
	return s.Settings.SetRefreshInterval(ctx, d)
}

// ToggleMentionEveryone flips the @everyone mention and returns the new value.
func (s *Service) ToggleMentionEveryone(ctx context.Context, guildID string) (bool, error) {
	cfg, err := settings.UpdateGuild(ctx, s.Settings, guildID, func(c *settings.GuildConfig) { c.MentionEveryone = !c.MentionEveryone })
	return cfg.MentionEveryone, err
}

// ToggleMentionHere flips the @here mention and returns the new value.
func (s *Service) ToggleMentionHere(ctx context.Context, guildID string) (bool, error) {
	cfg, err := settings.UpdateGuild(ctx, s.Settings, guildID, func(c *settings.GuildConfig) { c.MentionHere = !c.MentionHere })
	return cfg.MentionHere, err
}

// RoleToggle reports a role mention change. NotMentionable is set when the role is
// enabled but will have to be made mentionable around each alert.
type RoleToggle struct {
	On             bool
	NotMentionable bool
}

// ToggleRoleMention flips the mention flag of roleID.
func (s *Service) ToggleRoleMention(ctx context.Context, guildID, roleID string) (RoleToggle, error) {
	on, err := s.Settings.RoleMention(ctx, guildID, roleID)
	if err != nil {
		return RoleToggle{}, err
	}
	on = !on
	if err := s.Settings.SetRoleMention(ctx, guildID, roleID, on); err != nil {
		return RoleToggle{}, err
	}
	out := RoleToggle{On: on}
	if on {
		roles, err := s.Platform.Roles(ctx, guildID)
		if err == nil {
			for _, r := range roles {
				if r.ID == roleID && !r.Mentionable {
					out.NotMentionable = true
				}
			}
		}
	}
	return out, nil
}

// SetAutodelete sets whether alerts are deleted when the stream goes offline.
func (s *Service) SetAutodelete(ctx context.Context, guildID string, on bool) error {
	_, err := settings.UpdateGuild(ctx, s.Settings, guildID, func(c *settings.GuildConfig) { c.Autodelete = on })
	return err
}

// ToggleIgnoreReruns flips rerun exclusion and returns the new value.
func (s *Service) ToggleIgnoreReruns(ctx context.Context, guildID string) (bool, error) {
	cfg, err := settings.UpdateGuild(ctx, s.Settings, guildID, func(c *settings.GuildConfig) { c.IgnoreReruns = !c.IgnoreReruns })
	return cfg.IgnoreReruns, err
}

// Template kinds accepted by SetTemplate.
const (
	TemplateMention   = "mention"
	TemplateNoMention = "nomention"
)

// SetTemplate sets the alert text used with (kind "mention") or without ("nomention") mentions.
func (s *Service) SetTemplate(ctx context.Context, guildID, kind, text string) error {
	var fn func(*settings.GuildConfig)
	switch kind {
	case TemplateMention:
		fn = func(c *settings.GuildConfig) { c.LiveMessageMention = text }
	case TemplateNoMention:
		fn = func(c *settings.GuildConfig) { c.LiveMessageNoMention = text }
	default:
		return ErrUnknownTemplate
	}
	_, err := settings.UpdateGuild(ctx, s.Settings, guildID, fn)
	return err
}

// ClearTemplates restores the built-in alert texts.
func (s *Service) ClearTemplates(ctx context.Context, guildID string) error {
	_, err := settings.UpdateGuild(ctx, s.Settings, guildID, func(c *settings.GuildConfig) {
		c.LiveMessageMention, c.LiveMessageNoMention = "", ""
	})
	return err
}

// SetCredentials stores new API credentials and applies them. A failed token request is
// returned so the caller can report it; the credentials stay stored either way.
func (s *Service) SetCredentials(ctx context.Context, c settings.Credentials) error {
	if c.Empty() {
		return fmt.Errorf("client id is required")
	}
	if err := s.Settings.SaveCredentials(ctx, c); err != nil {
		return err
	}
	s.Tokens.SetCredentials(c.ClientID, c.ClientSecret, c.AccessToken)
	if err := s.Tokens.RefreshIfNeeded(ctx); err != nil {
		return fmt.Errorf("credentials saved but the token request failed: %w", err)
	}
	return nil
}
