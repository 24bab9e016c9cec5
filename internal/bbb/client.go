package bbb

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openconf/brooms/internal/models"
)

// Client is an HTTP implementation of the API capability against a
// BigBlueButton endpoint. Requests are checksum-signed GET calls; responses
// are XML.
type Client struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

// NewClient creates a client for the given API endpoint (the .../api/ base
// URL) and shared secret.
func NewClient(endpoint, secret string) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/") + "/",
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// messageKeys the server uses for "meeting is gone" class failures.
func isNotFoundKey(key string) bool {
	switch key {
	case "notFound", "invalidMeetingIdentifier", "meetingDoesNotExist":
		return true
	}
	return false
}

// signedURL builds action?query&checksum=sha1(action+query+secret).
func (c *Client) signedURL(action string, params url.Values) string {
	query := params.Encode()
	sum := sha1.Sum([]byte(action + query + c.secret))
	checksum := hex.EncodeToString(sum[:])
	if query != "" {
		query += "&"
	}
	return c.endpoint + action + "?" + query + "checksum=" + checksum
}

// response is the common envelope of every API answer.
type response struct {
	ReturnCode string `xml:"returncode"`
	MessageKey string `xml:"messageKey"`
	Message    string `xml:"message"`
}

func (c *Client) call(ctx context.Context, action string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.signedURL(action, params), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for name, value := range RequestHeadersFromContext(ctx) {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// createResponse is the XML shape of a create answer.
type createResponse struct {
	response
	MeetingID   string `xml:"meetingID"`
	ModeratorPW string `xml:"moderatorPW"`
	AttendeePW  string `xml:"attendeePW"`
	VoiceBridge string `xml:"voiceBridge"`
}

// CreateMeeting performs the create call.
func (c *Client) CreateMeeting(ctx context.Context, name, meetingID string, opts CreateOptions) (*CreateResponse, error) {
	params := opts.Values()
	params.Set("name", name)
	params.Set("meetingID", meetingID)

	var cr createResponse
	if err := c.call(ctx, "create", params, &cr); err != nil {
		return nil, err
	}
	if cr.ReturnCode != "SUCCESS" {
		return nil, fmt.Errorf("create failed (%s): %s", cr.MessageKey, cr.Message)
	}
	return &CreateResponse{
		MeetingID:   cr.MeetingID,
		ModeratorPW: cr.ModeratorPW,
		AttendeePW:  cr.AttendeePW,
		VoiceBridge: cr.VoiceBridge,
	}, nil
}

// meetingInfoResponse is the XML shape of a getMeetingInfo answer.
type meetingInfoResponse struct {
	response
	MeetingID            string `xml:"meetingID"`
	Running              bool   `xml:"running"`
	CreateTime           int64  `xml:"createTime"`
	ParticipantCount     int    `xml:"participantCount"`
	ModeratorCount       int    `xml:"moderatorCount"`
	HasBeenForciblyEnded bool   `xml:"hasBeenForciblyEnded"`
	EndTime              string `xml:"endTime"`
	Attendees            []struct {
		UserID      string `xml:"userID"`
		FullName    string `xml:"fullName"`
		Role        string `xml:"role"`
		IsPresenter bool   `xml:"isPresenter"`
	} `xml:"attendees>attendee"`
	Metadata metadataMap `xml:"metadata"`
}

// metadataMap decodes the free-form <metadata> children into a map.
type metadataMap map[string]string

func (m *metadataMap) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	*m = make(map[string]string)
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &el); err != nil {
				return err
			}
			(*m)[el.Name.Local] = value
		case xml.EndElement:
			if el.Name == start.Name {
				return nil
			}
		}
	}
}

// GetMeetingInfo performs the getMeetingInfo call. Returns
// ErrMeetingNotFound when the server reports the meeting gone.
func (c *Client) GetMeetingInfo(ctx context.Context, meetingID, password string) (*MeetingInfo, error) {
	params := url.Values{}
	params.Set("meetingID", meetingID)
	params.Set("password", password)

	var mi meetingInfoResponse
	if err := c.call(ctx, "getMeetingInfo", params, &mi); err != nil {
		return nil, err
	}
	if mi.ReturnCode != "SUCCESS" {
		if isNotFoundKey(mi.MessageKey) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("getMeetingInfo failed (%s): %s", mi.MessageKey, mi.Message)
	}

	info := &MeetingInfo{
		MeetingID:            mi.MeetingID,
		Running:              mi.Running,
		CreateTime:           mi.CreateTime,
		ParticipantCount:     mi.ParticipantCount,
		ModeratorCount:       mi.ModeratorCount,
		HasBeenForciblyEnded: mi.HasBeenForciblyEnded,
		EndTime:              mi.EndTime,
		Metadata:             mi.Metadata,
	}
	for _, a := range mi.Attendees {
		info.Attendees = append(info.Attendees, models.Attendee{
			UserID:      a.UserID,
			FullName:    a.FullName,
			Role:        a.Role,
			IsPresenter: a.IsPresenter,
		})
	}
	return info, nil
}

// runningResponse is the XML shape of an isMeetingRunning answer.
type runningResponse struct {
	response
	Running bool `xml:"running"`
}

// IsMeetingRunning performs the isMeetingRunning call.
func (c *Client) IsMeetingRunning(ctx context.Context, meetingID string) (bool, error) {
	params := url.Values{}
	params.Set("meetingID", meetingID)

	var rr runningResponse
	if err := c.call(ctx, "isMeetingRunning", params, &rr); err != nil {
		return false, err
	}
	if rr.ReturnCode != "SUCCESS" {
		return false, fmt.Errorf("isMeetingRunning failed (%s): %s", rr.MessageKey, rr.Message)
	}
	return rr.Running, nil
}

// EndMeeting performs the end call. A not-found answer is treated as
// success: the meeting is gone either way.
func (c *Client) EndMeeting(ctx context.Context, meetingID, password string) error {
	params := url.Values{}
	params.Set("meetingID", meetingID)
	params.Set("password", password)

	var er response
	if err := c.call(ctx, "end", params, &er); err != nil {
		return err
	}
	if er.ReturnCode != "SUCCESS" && !isNotFoundKey(er.MessageKey) {
		return fmt.Errorf("end failed (%s): %s", er.MessageKey, er.Message)
	}
	return nil
}

// JoinMeetingURL assembles a signed join URL. No network call is made; the
// URL is handed to the end user's browser.
func (c *Client) JoinMeetingURL(meetingID, fullName, password string, opts JoinOptions) (string, error) {
	params := opts.Values()
	params.Set("meetingID", meetingID)
	params.Set("fullName", fullName)
	params.Set("password", password)
	return c.signedURL("join", params), nil
}
