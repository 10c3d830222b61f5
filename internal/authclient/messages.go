package authclient

import (
	"errors"
	"strings"
)

// Server messages are matched by substring, first match wins.
var friendlyMessages = []struct {
	match string
	text  string
}{
	{"Credential Incomplete", "Please fill in all required fields."},
	{"User already exists", "An account with this email or username already exists."},
	{"User not found", "No account found with that email or username."},
	{"Password is incorrect", "Incorrect password. Please try again."},
	{"Password must be at most", "That password is too long."},
	{"Email is required from OAuth provider", "Your sign-in provider did not share an email address."},
	{"Unauthorized", "Your session has expired. Please sign in again."},
	{"Refresh token", "Your session has expired. Please sign in again."},
}

const (
	genericFailure = "Something went wrong. Please try again."
	networkFailure = "Unable to reach the server. Check your connection and try again."
)

// UserMessage turns an error from the coordinator into copy fit for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return networkFailure
	}
	for _, m := range friendlyMessages {
		if strings.Contains(apiErr.Message, m.match) {
			return m.text
		}
	}
	return genericFailure
}
