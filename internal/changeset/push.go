package changeset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyPayload reports a notification body with no content.
var ErrEmptyPayload = errors.New("changeset: empty payload")

type pushCommit struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Added     []string  `json:"added"`
	Removed   []string  `json:"removed"`
	Modified  []string  `json:"modified"`
}

type pushEvent struct {
	Ref        string       `json:"ref"`
	After      string       `json:"after"`
	Deleted    bool         `json:"deleted"`
	HeadCommit *pushCommit  `json:"head_commit"`
	Commits    []pushCommit `json:"commits"`
}

// ParsePushEvent decodes a GitHub style push payload into a Notification.
// Commits are folded in order so the last commit touching a path decides
// which list it lands in.
func ParsePushEvent(payload []byte) (Notification, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return Notification{}, ErrEmptyPayload
	}
	var event pushEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return Notification{}, fmt.Errorf("changeset: decode push event: %w", err)
	}
	if strings.TrimSpace(event.After) == "" {
		return Notification{}, errors.New("changeset: push event missing revision")
	}
	if err := ValidateRevision(strings.TrimSpace(event.After)); err != nil {
		return Notification{}, err
	}

	n := Notification{Revision: event.After}
	if event.HeadCommit != nil {
		n.Timestamp = event.HeadCommit.Timestamp
	}
	if event.Deleted {
		return n, nil
	}

	const (
		added = iota
		modified
		removed
	)
	state := map[string]int{}
	var order []string
	touch := func(p string, op int) {
		if _, ok := state[p]; !ok {
			order = append(order, p)
		}
		state[p] = op
	}
	for _, commit := range event.Commits {
		for _, p := range commit.Added {
			touch(p, added)
		}
		for _, p := range commit.Modified {
			touch(p, modified)
		}
		for _, p := range commit.Removed {
			touch(p, removed)
		}
		if n.Timestamp.IsZero() || commit.Timestamp.After(n.Timestamp) {
			n.Timestamp = commit.Timestamp
		}
	}
	for _, p := range order {
		switch state[p] {
		case added:
			n.Added = append(n.Added, p)
		case modified:
			n.Modified = append(n.Modified, p)
		case removed:
			n.Removed = append(n.Removed, p)
		}
	}
	return n, nil
}

// ParseNotification decodes the generic JSON notification format.
func ParseNotification(payload []byte) (Notification, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return Notification{}, ErrEmptyPayload
	}
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notification{}, fmt.Errorf("changeset: decode notification: %w", err)
	}
	if strings.TrimSpace(n.Revision) == "" {
		return Notification{}, errors.New("changeset: notification missing revision")
	}
	if err := ValidateRevision(strings.TrimSpace(n.Revision)); err != nil {
		return Notification{}, err
	}
	return n, nil
}
