package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/srmx/assistant/internal/bridge"
	"github.com/srmx/assistant/internal/repository"
)

// NewScheduleMeetingTool returns the asynchronous tool that records a
// meeting request and asks the owner for approval through the bridge. The
// stored meeting moves from pending to confirmed or declined based on the
// owner's reply; no reply leaves it pending.
func NewScheduleMeetingTool(meetings repository.MeetingRepository, b bridge.Client, ownerName string, timeout time.Duration) *Tool {
	return &Tool{
		Name:        "schedule_meeting",
		Description: "Request a meeting with " + ownerName + ". The owner is asked for approval before the meeting is confirmed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short title for the meeting",
				},
				"datetime": map[string]any{
					"type":        "string",
					"description": "Proposed meeting time, RFC 3339 format",
				},
				"requested_by": map[string]any{
					"type":        "string",
					"description": "Name or contact of the person requesting the meeting",
				},
			},
			"required":             []string{"title", "datetime", "requested_by"},
			"additionalProperties": false,
		},
		Strict: true,
		Async:  true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			meeting, err := meetingFromArgs(args)
			if err != nil {
				return nil, err
			}

			if err := meetings.Create(ctx, meeting); err != nil {
				return nil, fmt.Errorf("schedule_meeting: %w", err)
			}

			prompt := fmt.Sprintf(
				"Meeting request: %s at %s, requested by %s.\nReply with 'confirm' or 'decline' for meeting ID: %s",
				meeting.Title, meeting.Datetime.Format(time.RFC3339), meeting.RequestedBy, meeting.ID,
			)
			reply, err := b.SendAndAwaitReply(ctx, prompt, ownerName, timeout)
			if err != nil {
				return nil, fmt.Errorf("schedule_meeting: %w", err)
			}

			status := decisionFromReply(reply)
			if status == repository.MeetingPending {
				return map[string]any{
					"meeting_id": meeting.ID,
					"status":     "pending",
					"detail":     "the owner has not responded yet; the meeting stays unconfirmed",
				}, nil
			}

			if _, err := meetings.SetStatus(ctx, meeting.ID, status, ownerName); err != nil {
				return nil, fmt.Errorf("schedule_meeting: %w", err)
			}

			return map[string]any{
				"meeting_id": meeting.ID,
				"status":     string(status),
			}, nil
		},
	}
}

func meetingFromArgs(args map[string]any) (repository.Meeting, error) {
	title, _ := args["title"].(string)
	when, _ := args["datetime"].(string)
	requestedBy, _ := args["requested_by"].(string)
	if title == "" || when == "" || requestedBy == "" {
		return repository.Meeting{}, fmt.Errorf("schedule_meeting: title, datetime and requested_by are required")
	}

	at, err := time.Parse(time.RFC3339, when)
	if err != nil {
		return repository.Meeting{}, fmt.Errorf("schedule_meeting: parse datetime %q: %w", when, err)
	}

	return repository.Meeting{
		ID:           uuid.NewString(),
		Title:        title,
		Datetime:     at,
		RequestedBy:  requestedBy,
		Participants: []string{requestedBy},
		Status:       repository.MeetingPending,
	}, nil
}

func decisionFromReply(reply string) repository.MeetingStatus {
	lower := strings.ToLower(reply)
	switch {
	case strings.Contains(lower, "confirm"):
		return repository.MeetingConfirmed
	case strings.Contains(lower, "decline"):
		return repository.MeetingDeclined
	default:
		return repository.MeetingPending
	}
}
