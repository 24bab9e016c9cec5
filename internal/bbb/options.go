package bbb

import (
	"net/url"
	"strconv"
)

// CreateOptions carries the named create-time parameters. Zero values mean
// "not set" and are omitted from the outgoing call. Meta entries become
// meta_<name> parameters. Extra entries are raw overrides applied last and
// therefore take final precedence over every named field.
type CreateOptions struct {
	Welcome                 string
	Record                  bool
	Duration                int
	ModeratorOnlyMessage    string
	AutoStartRecording      bool
	AllowStartStopRecording bool
	MaxParticipants         int
	LogoutURL               string
	VoiceBridge             string
	Meta                    map[string]string
	Extra                   map[string]string
}

// SetMeta records a meta_<name> parameter, allocating the map on first use.
func (o *CreateOptions) SetMeta(name, value string) {
	if o.Meta == nil {
		o.Meta = make(map[string]string)
	}
	o.Meta[name] = value
}

// Values encodes the options as query parameters for a create call.
func (o CreateOptions) Values() url.Values {
	v := url.Values{}
	if o.Welcome != "" {
		v.Set("welcome", o.Welcome)
	}
	v.Set("record", strconv.FormatBool(o.Record))
	if o.Duration > 0 {
		v.Set("duration", strconv.Itoa(o.Duration))
	}
	if o.ModeratorOnlyMessage != "" {
		v.Set("moderatorOnlyMessage", o.ModeratorOnlyMessage)
	}
	v.Set("autoStartRecording", strconv.FormatBool(o.AutoStartRecording))
	v.Set("allowStartStopRecording", strconv.FormatBool(o.AllowStartStopRecording))
	if o.MaxParticipants > 0 {
		v.Set("maxParticipants", strconv.Itoa(o.MaxParticipants))
	}
	if o.LogoutURL != "" {
		v.Set("logoutURL", o.LogoutURL)
	}
	if o.VoiceBridge != "" {
		v.Set("voiceBridge", o.VoiceBridge)
	}
	for name, value := range o.Meta {
		v.Set("meta_"+name, value)
	}
	for key, value := range o.Extra {
		v.Set(key, value)
	}
	return v
}

// JoinOptions carries the named join-time parameters. CreateTime pins the
// join URL to a specific meeting instance; UserID tags the joining user for
// the remote server.
type JoinOptions struct {
	CreateTime int64
	UserID     string
	Guest      bool
	Extra      map[string]string
}

// Values encodes the options as query parameters for a join URL.
func (o JoinOptions) Values() url.Values {
	v := url.Values{}
	if o.CreateTime > 0 {
		v.Set("createTime", strconv.FormatInt(o.CreateTime, 10))
	}
	if o.UserID != "" {
		v.Set("userID", o.UserID)
	}
	if o.Guest {
		v.Set("guest", "true")
	}
	for key, value := range o.Extra {
		v.Set(key, value)
	}
	return v
}
