package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"agent-console/internal/calls"
)

// Provider payloads are loosely typed: ids arrive as strings or numbers,
// numeric fields may be null or quoted, timestamps vary in layout. Everything
// is normalized here so the rest of the service sees typed records.

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		// numbers and anything else keep their literal text
		*f = flexString(b)
	}
	return nil
}

type flexFloat struct {
	v  float64
	ok bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = flexFloat{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	*f = flexFloat{v: v, ok: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

// timeLayouts covers the ISO 8601 shapes the provider has been seen to emit:
// T or space separator, optional seconds and fraction, Z, +hh:mm, +hhmm or no zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999Z0700",
	"2006-01-02T15:04Z0700",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05.999999Z0700",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

type flexTime struct {
	t  time.Time
	ok bool
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	*f = flexTime{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] != '"' {
		// epoch seconds or milliseconds
		n, err := strconv.ParseFloat(string(b), 64)
		if err != nil || n <= 0 {
			return nil
		}
		if n > 1e12 {
			n /= 1000
		}
		sec := int64(n)
		*f = flexTime{t: time.Unix(sec, int64((n-float64(sec))*1e9)).UTC(), ok: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		// layouts without a zone are read as UTC
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime{t: t.UTC(), ok: true}
			return nil
		}
	}
	return nil
}

func (f flexTime) ptr() *time.Time {
	if !f.ok {
		return nil
	}
	t := f.t
	return &t
}

type wireTranscriptEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp flexFloat `json:"timestamp"`
}

type wireCall struct {
	ID               flexString      `json:"id"`
	AgentID          flexString      `json:"agent_id"`
	FromNumber       string          `json:"from_number"`
	ToNumber         string          `json:"to_number"`
	Direction        string          `json:"direction"`
	Status           string          `json:"status"`
	StartTime        flexTime        `json:"start_time"`
	EndTime          flexTime        `json:"end_time"`
	DurationSeconds  flexFloat       `json:"duration_seconds"`
	Cost             flexFloat       `json:"cost"`
	TranscriptString string          `json:"transcript_string"`
	Transcript       json.RawMessage `json:"transcript"`
	RecordingURL     string          `json:"recording_url"`
}

func (w wireCall) toCall() calls.Call {
	status := calls.NormalizeStatus(w.Status)
	if status == "" {
		status = "unknown"
	}
	return calls.Call{
		ID:              string(w.ID),
		AgentID:         string(w.AgentID),
		FromNumber:      w.FromNumber,
		ToNumber:        w.ToNumber,
		Direction:       w.Direction,
		Status:          status,
		StartedAt:       w.StartTime.ptr(),
		EndedAt:         w.EndTime.ptr(),
		DurationSeconds: w.DurationSeconds.ptr(),
		Cost:            w.Cost.ptr(),
		Summary:         w.TranscriptString,
		RecordingURL:    w.RecordingURL,
		Transcript:      normalizeTranscript(w.Transcript),
	}
}

// normalizeTranscript maps provider roles onto agent/caller. Non-array
// transcripts are dropped.
func normalizeTranscript(raw json.RawMessage) []calls.TranscriptEntry {
	if len(raw) == 0 {
		return nil
	}
	var entries []wireTranscriptEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	out := make([]calls.TranscriptEntry, 0, len(entries))
	for _, e := range entries {
		speaker := calls.SpeakerCaller
		if e.Role == "" || strings.EqualFold(e.Role, "agent") {
			speaker = calls.SpeakerAgent
		}
		out = append(out, calls.TranscriptEntry{Speaker: speaker, Text: e.Content, Offset: e.Timestamp.ptr()})
	}
	return out
}

type wireAgent struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
	Language    string     `json:"language"`
	Voice       string     `json:"voice"`
}

func (w wireAgent) toAgent() Agent {
	return Agent{
		ID:          string(w.ID),
		Name:        w.Name,
		Status:      w.Status,
		Description: w.Description,
		Language:    w.Language,
		Voice:       w.Voice,
	}
}

type wirePhoneNumber struct {
	ID             flexString `json:"id"`
	Number         string     `json:"number"`
	PhoneNumber    string     `json:"phone_number"`
	Name           string     `json:"name"`
	AgentID        flexString `json:"agent_id"`
	InboundAgentID flexString `json:"inbound_agent_id"`
	Status         string     `json:"status"`
}

func (w wirePhoneNumber) toPhoneNumber() PhoneNumber {
	number := w.Number
	if number == "" {
		number = w.PhoneNumber
	}
	agentID := string(w.AgentID)
	if agentID == "" {
		agentID = string(w.InboundAgentID)
	}
	id := string(w.ID)
	if id == "" {
		id = number
	}
	return PhoneNumber{ID: id, Number: number, Name: w.Name, AgentID: agentID, Status: w.Status}
}

type wireKnowledgeBase struct {
	ID            flexString `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	AgentID       flexString `json:"agent_id"`
	DocumentCount flexFloat  `json:"document_count"`
}

func (w wireKnowledgeBase) toKnowledgeBase() KnowledgeBase {
	return KnowledgeBase{
		ID:            string(w.ID),
		Name:          w.Name,
		Description:   w.Description,
		AgentID:       string(w.AgentID),
		DocumentCount: int(w.DocumentCount.v),
	}
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	TotalPages flexFloat       `json:"total_pages"`
	Page       flexFloat       `json:"current_page"`
}

// unwrap returns the payload inside a {"data": ...} envelope, or the body
// itself when the provider answered without one.
func unwrap(body []byte) (json.RawMessage, envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, envelope{}, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, envelope{}, err
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return trimmed, env, nil
	}
	return env.Data, env, nil
}

func decodeList[W any, T any](body []byte, conv func(W) T) ([]T, envelope, error) {
	data, env, err := unwrap(body)
	if err != nil {
		return nil, env, err
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []T{}, env, nil
	}
	var wires []W
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, env, err
	}
	out := make([]T, 0, len(wires))
	for _, w := range wires {
		out = append(out, conv(w))
	}
	return out, env, nil
}

func decodeOne[W any, T any](body []byte, conv func(W) T) (T, error) {
	var zero T
	data, _, err := unwrap(body)
	if err != nil {
		return zero, err
	}
	var w W
	if err := json.Unmarshal(data, &w); err != nil {
		return zero, err
	}
	return conv(w), nil
}
