package repository

import (
	"context"
	"time"

	"github.com/srmx/assistant/internal/model"
)

// ToolResultRecord is the stored outcome of one dispatched tool call.
type ToolResultRecord struct {
	CallID    string             `bson:"_id" json:"call_id"`
	ToolName  string             `bson:"tool_name" json:"tool_name"`
	Arguments map[string]any     `bson:"arguments,omitempty" json:"arguments,omitempty"`
	Output    string             `bson:"output" json:"output"`
	Status    model.ResultStatus `bson:"status" json:"status"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ToolResultRepository is the result store: keyed by call_id, written by the
// dispatch worker, polled by the conversation loop.
type ToolResultRepository interface {
	// Save upserts the record for its call_id. Idempotent.
	Save(ctx context.Context, record ToolResultRecord) error

	// Get returns the record for a call_id, or nil, nil when absent.
	// Callers must treat an absent record the same as a pending one.
	Get(ctx context.Context, callID string) (*ToolResultRecord, error)
}

// ProfileRepository reads owner profiles from the document store.
type ProfileRepository interface {
	// Get returns the profile document for a name, or nil, nil when absent.
	Get(ctx context.Context, name string) (map[string]any, error)
}

// MeetingStatus is the approval state of a meeting request.
type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingConfirmed MeetingStatus = "confirmed"
	MeetingDeclined  MeetingStatus = "declined"
)

// Meeting is a meeting request awaiting or past owner approval.
type Meeting struct {
	ID           string        `bson:"_id" json:"id"`
	Title        string        `bson:"title" json:"title"`
	Datetime     time.Time     `bson:"datetime" json:"datetime"`
	Participants []string      `bson:"participants" json:"participants"`
	RequestedBy  string        `bson:"requested_by" json:"requested_by"`
	ConfirmedBy  string        `bson:"confirmed_by,omitempty" json:"confirmed_by,omitempty"`
	Status       MeetingStatus `bson:"status" json:"status"`
}

// MeetingRepository persists meeting requests.
type MeetingRepository interface {
	Create(ctx context.Context, meeting Meeting) error

	// SetStatus updates a meeting's status and returns the updated meeting,
	// or nil, nil when the meeting does not exist.
	SetStatus(ctx context.Context, id string, status MeetingStatus, confirmedBy string) (*Meeting, error)

	List(ctx context.Context) ([]Meeting, error)
}
