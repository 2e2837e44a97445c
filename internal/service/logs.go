package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/logsync"
	"github.com/ivanreeve/poop-tracker/internal/stats"
)

var validate = validator.New()

type LogRequest struct {
	Type int `json:"type" validate:"required,gte=1,lte=7"`
}

func ValidateLogRequest(body *LogRequest) error {
	return validate.Struct(body)
}

// LogView is an entry with its stool type resolved for display.
type LogView struct {
	internal.LogEntry
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

func NewLogView(l internal.LogEntry) LogView {
	v := LogView{LogEntry: l}
	if st, ok := stats.LookupStoolType(l.Type); ok {
		v.Label = st.Label
		v.Emoji = st.Emoji
	}
	return v
}

func LogViews(logs []internal.LogEntry) []LogView {
	out := make([]LogView, len(logs))
	for i, l := range logs {
		out[i] = NewLogView(l)
	}
	return out
}

func CreateLog(ctx context.Context, logs *logsync.Sync, body *LogRequest) (*internal.LogEntry, error) {
	if err := ValidateLogRequest(body); err != nil {
		return nil, err
	}
	return logs.AddLog(ctx, body.Type)
}

// Stats summarizes the user's entries as of now.
func Stats(logs *logsync.Sync, now time.Time) stats.Summary {
	return stats.Summarize(logs.Logs(), now)
}
