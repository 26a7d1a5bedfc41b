package roomconn

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "ws://localhost:8080"

var errEmptyRoom = errors.New("roomconn: empty room id")

// Address builds the push-channel address for a room:
//
//	{ws|wss}://host[/prefix]/ws/<roomID>[?participant_id=<id>]
//
// The scheme mirrors the base URL's, so an https page origin yields wss and
// an http origin yields ws. A base without a scheme is treated as ws.
func Address(baseURL, roomID, participantID string) (string, error) {
	if roomID == "" {
		return "", errEmptyRoom
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "ws://" + baseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("roomconn: parse base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("roomconn: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("roomconn: base url %q has no host", baseURL)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + roomID
	u.RawPath = ""
	u.Fragment = ""

	q := url.Values{}
	if participantID != "" {
		q.Set("participant_id", participantID)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
