package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/thetaalert/settings"
)

type checkRequest struct {
	Name  string `json:"name"`
	Guild string `json:"guild"`
}

// HandleCheck runs a synchronous liveness check. GET takes name and guild query params.
func (h *Handlers) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if r.Method == http.MethodGet {
		req.Name, req.Guild = r.URL.Query().Get("name"), r.URL.Query().Get("guild")
	} else if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, badRequest("name is required"))
		return
	}
	res, err := h.Service.Check(r.Context(), req.Guild, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": res.Outcome.String(),
		"embed":   res.Embed,
		"message": res.Message,
	})
}

type toggleRequest struct {
	Channel string `json:"channel"`
	Name    string `json:"name"`
}

// HandleToggleAlert subscribes or unsubscribes a channel.
func (h *Handlers) HandleToggleAlert(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Channel == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, r, badRequest("channel and name are required"))
		return
	}
	res, err := h.Service.ToggleAlert(r.Context(), req.Channel, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": res.Name, "added": res.Added, "message": res.Message()})
}

type quitRequest struct {
	Channel   string `json:"channel"`
	GuildWide bool   `json:"guild_wide"`
}

// HandleQuit removes every subscription of a channel, or of its whole guild.
func (h *Handlers) HandleQuit(w http.ResponseWriter, r *http.Request) {
	var req quitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Channel == "" {
		writeError(w, r, badRequest("channel is required"))
		return
	}
	n, err := h.Service.Quit(r.Context(), req.Channel, req.GuildWide)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

// HandleListAlerts lists the streams each channel of ?guild= alerts on.
func (h *Handlers) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	guild := r.URL.Query().Get("guild")
	if guild == "" {
		writeError(w, r, badRequest("guild is required"))
		return
	}
	list, err := h.Service.List(r.Context(), guild)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": list})
}

// HandleSetInterval sets the polling interval in seconds.
func (h *Handlers) HandleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Service.SetRefreshInterval(r.Context(), time.Duration(req.Seconds)*time.Second); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interval_seconds": req.Seconds})
}

// HandleToggleMention flips the @everyone or @here mention of a guild.
func (h *Handlers) HandleToggleMention(w http.ResponseWriter, r *http.Request) {
	guild := r.PathValue("guild")
	var (
		on  bool
		err error
	)
	switch kind := r.PathValue("kind"); kind {
	case "everyone":
		on, err = h.Service.ToggleMentionEveryone(r.Context(), guild)
	case "here":
		on, err = h.Service.ToggleMentionHere(r.Context(), guild)
	default:
		writeError(w, r, badRequest("mention kind must be everyone or here"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": on})
}

// HandleToggleRoleMention flips whether a role is mentioned in alerts.
func (h *Handlers) HandleToggleRoleMention(w http.ResponseWriter, r *http.Request) {
	rt, err := h.Service.ToggleRoleMention(r.Context(), r.PathValue("guild"), r.PathValue("role"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := map[string]any{"enabled": rt.On}
	if rt.NotMentionable {
		resp["warning"] = "The role is not mentionable; the bot needs Manage Roles to mention it."
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSetAutodelete sets whether alerts are removed when the stream ends.
func (h *Handlers) HandleSetAutodelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Service.SetAutodelete(r.Context(), r.PathValue("guild"), req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": req.Enabled})
}

// HandleToggleIgnoreReruns flips rerun exclusion for a guild.
func (h *Handlers) HandleToggleIgnoreReruns(w http.ResponseWriter, r *http.Request) {
	on, err := h.Service.ToggleIgnoreReruns(r.Context(), r.PathValue("guild"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": on})
}

// HandleSetTemplate sets a live message template.
func (h *Handlers) HandleSetTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Service.SetTemplate(r.Context(), r.PathValue("guild"), req.Kind, req.Text); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": req.Kind, "text": req.Text})
}

// HandleClearTemplates restores the default live messages.
func (h *Handlers) HandleClearTemplates(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.ClearTemplates(r.Context(), r.PathValue("guild")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetCredentials stores the Theta API credentials and requests a token with them.
func (h *Handlers) HandleSetCredentials(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		AccessToken  string `json:"access_token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		writeError(w, r, badRequest("client_id is required"))
		return
	}
	creds := settings.Credentials{ClientID: req.ClientID, ClientSecret: req.ClientSecret, AccessToken: req.AccessToken}
	if err := h.Service.SetCredentials(r.Context(), creds); err != nil {
		// stored either way
		writeMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	writeMessage(w, http.StatusOK, "Credentials updated.")
}
