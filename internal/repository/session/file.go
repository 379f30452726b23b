package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/step-alarm/internal/config"
	domain "github.com/oshokin/step-alarm/internal/domain/alarm"
)

// DefaultMaxEntries is how many sessions the history keeps when unset.
const DefaultMaxEntries = 100

// sessionsKey is the top-level field holding the session list.
const sessionsKey = "sessions"

// Repository defines persistence operations for session history.
type Repository interface {
	Append(ctx context.Context, session *domain.Session) error
	List(ctx context.Context) ([]*domain.Session, error)
	Last(ctx context.Context) (*domain.Session, error)
}

// ErrNotFound is returned when the history is empty or missing.
var ErrNotFound = errors.New("session history not found")

// FileRepository stores session history in a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the history file.
	path string
	// maxEntries caps the number of stored sessions; oldest go first.
	maxEntries int
	// mu protects concurrent access to the history file.
	mu sync.Mutex
}

// NewFileRepository creates a repository at path keeping at most maxEntries
// sessions. A non-positive maxEntries uses DefaultMaxEntries.
func NewFileRepository(path string, maxEntries int) *FileRepository {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &FileRepository{
		path:       filepath.Clean(path),
		maxEntries: maxEntries,
	}
}

// Append adds a finished session to the history.
func (r *FileRepository) Append(_ context.Context, session *domain.Session) error {
	if session == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	sessions = append(sessions, session.Clone())
	if overflow := len(sessions) - r.maxEntries; overflow > 0 {
		sessions = sessions[overflow:]
	}

	return r.save(sessions)
}

// List returns the stored sessions, oldest first.
func (r *FileRepository) List(_ context.Context) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// Last returns the most recently appended session.
func (r *FileRepository) Last(_ context.Context) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		return nil, ErrNotFound
	}

	return sessions[len(sessions)-1], nil
}

// load reads the history file. Caller holds mu.
func (r *FileRepository) load() ([]*domain.Session, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read history file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}

	values := document.GetFields()[sessionsKey].GetListValue().GetValues()
	sessions := make([]*domain.Session, 0, len(values))

	for _, value := range values {
		if fields := value.GetStructValue(); fields != nil {
			sessions = append(sessions, FromStruct(fields))
		}
	}

	return sessions, nil
}

// save writes the history file. Caller holds mu.
func (r *FileRepository) save(sessions []*domain.Session) error {
	values := make([]*structpb.Value, 0, len(sessions))
	for _, session := range sessions {
		values = append(values, structpb.NewStructValue(ToStruct(session)))
	}

	document := &structpb.Struct{
		Fields: map[string]*structpb.Value{
			sessionsKey: structpb.NewListValue(&structpb.ListValue{Values: values}),
		},
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}

	return nil
}

// ToStruct converts a session into its JSON object form.
func ToStruct(session *domain.Session) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"id":           structpb.NewStringValue(session.ID),
		"alarm_id":     structpb.NewStringValue(session.AlarmID),
		"target_steps": structpb.NewNumberValue(float64(session.TargetSteps)),
		"steps":        structpb.NewNumberValue(float64(session.Steps)),
		"strategy":     structpb.NewStringValue(session.Strategy),
		"outcome":      structpb.NewStringValue(string(session.Outcome)),
		"started_at":   structpb.NewStringValue(formatTime(session.StartedAt)),
		"ended_at":     structpb.NewStringValue(formatTime(session.EndedAt)),
	}

	if session.Reason != "" {
		fields["reason"] = structpb.NewStringValue(session.Reason)
	}

	if session.StoppedBy != nil {
		fields["stopped_by"] = structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				"hostname": structpb.NewStringValue(session.StoppedBy.Hostname),
				"username": structpb.NewStringValue(session.StoppedBy.Username),
			},
		})
	}

	return &structpb.Struct{Fields: fields}
}

// FromStruct converts the JSON object form back into a session. Unknown or
// malformed fields are left at their zero values.
func FromStruct(fields *structpb.Struct) *domain.Session {
	get := fields.GetFields()

	session := &domain.Session{
		ID:          get["id"].GetStringValue(),
		AlarmID:     get["alarm_id"].GetStringValue(),
		TargetSteps: uint64(get["target_steps"].GetNumberValue()),
		Steps:       uint64(get["steps"].GetNumberValue()),
		Strategy:    get["strategy"].GetStringValue(),
		Outcome:     domain.Outcome(get["outcome"].GetStringValue()),
		StartedAt:   parseTime(get["started_at"].GetStringValue()),
		EndedAt:     parseTime(get["ended_at"].GetStringValue()),
		Reason:      get["reason"].GetStringValue(),
	}

	if actor := get["stopped_by"].GetStructValue(); actor != nil {
		session.StoppedBy = &domain.Actor{
			Hostname: actor.GetFields()["hostname"].GetStringValue(),
			Username: actor.GetFields()["username"].GetStringValue(),
		}
	}

	return session
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
