package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Payload is the kind-specific part of an event. The concrete type is fixed
// by the event kind; see PayloadFor.
type Payload interface {
	extra() map[string]any
}

// SearchPayload is carried by search events. A blank term is stored as
// absent so the event does not show up in search analytics.
type SearchPayload struct {
	SearchTerm  string         `json:"searchTerm,omitempty"`
	ResultCount *int           `json:"resultCount,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`
	Extra       map[string]any `json:"-"`
}

// APICallPayload is carried by api_call events.
type APICallPayload struct {
	Endpoint       string         `json:"endpoint,omitempty"`
	Method         string         `json:"method,omitempty"`
	StatusCode     int            `json:"statusCode,omitempty"`
	ResponseTimeMs int64          `json:"responseTimeMs,omitempty"`
	Extra          map[string]any `json:"-"`
}

// ViewPayload is carried by page and content view events.
type ViewPayload struct {
	Path       string         `json:"path,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`
	Extra      map[string]any `json:"-"`
}

// ActionPayload is carried by interaction events.
type ActionPayload struct {
	ActionType string         `json:"actionType,omitempty"`
	Target     string         `json:"target,omitempty"`
	Value      any            `json:"value,omitempty"`
	Extra      map[string]any `json:"-"`
}

// FilePayload is carried by download and upload events.
type FilePayload struct {
	FileName  string         `json:"fileName,omitempty"`
	FileType  string         `json:"fileType,omitempty"`
	SizeBytes int64          `json:"sizeBytes,omitempty"`
	Extra     map[string]any `json:"-"`
}

// ChatPayload is carried by AI chat events.
type ChatPayload struct {
	Model        string         `json:"model,omitempty"`
	MessageCount int            `json:"messageCount,omitempty"`
	Tokens       int            `json:"tokens,omitempty"`
	Extra        map[string]any `json:"-"`
}

// AuthPayload is carried by signup, login and logout events.
type AuthPayload struct {
	Method  string         `json:"method,omitempty"`
	Success *bool          `json:"success,omitempty"`
	Extra   map[string]any `json:"-"`
}

// ErrorPayload is carried by error events.
type ErrorPayload struct {
	Source string         `json:"source,omitempty"`
	Fatal  bool           `json:"fatal,omitempty"`
	Extra  map[string]any `json:"-"`
}

// PerformancePayload is carried by performance events.
type PerformancePayload struct {
	Metric string         `json:"metric,omitempty"`
	Value  float64        `json:"value,omitempty"`
	Unit   string         `json:"unit,omitempty"`
	Extra  map[string]any `json:"-"`
}

func (p SearchPayload) extra() map[string]any      { return p.Extra }
func (p APICallPayload) extra() map[string]any     { return p.Extra }
func (p ViewPayload) extra() map[string]any        { return p.Extra }
func (p ActionPayload) extra() map[string]any      { return p.Extra }
func (p FilePayload) extra() map[string]any        { return p.Extra }
func (p ChatPayload) extra() map[string]any        { return p.Extra }
func (p AuthPayload) extra() map[string]any        { return p.Extra }
func (p ErrorPayload) extra() map[string]any       { return p.Extra }
func (p PerformancePayload) extra() map[string]any { return p.Extra }

const maxHTTPStatus = 599

// DecodePayload decodes free-form client metadata into the payload variant
// for kind. Keys the variant does not know are kept in Extra.
func DecodePayload(kind Kind, raw map[string]any) (Payload, error) {
	switch kind {
	case KindSearch:
		var p SearchPayload
		extra, err := decodeMetadata(raw, &p)
		if err != nil {
			return nil, err
		}
		p.Extra = extra
		p.SearchTerm = strings.TrimSpace(p.SearchTerm)
		if p.ResultCount != nil && *p.ResultCount < 0 {
			return nil, fmt.Errorf("%w: negative resultCount", ErrInvalidPayload)
		}
		return p, nil

	case KindAPICall:
		var p APICallPayload
		extra, err := decodeMetadata(raw, &p)
		if err != nil {
			return nil, err
		}
		p.Extra = extra
		if p.StatusCode != 0 && (p.StatusCode < 100 || p.StatusCode > maxHTTPStatus) {
			return nil, fmt.Errorf("%w: statusCode %d out of range", ErrInvalidPayload, p.StatusCode)
		}
		return p, nil

	case KindPageView, KindParkView, KindBlogView, KindEventView:
		var p ViewPayload
		extra, err := decodeMetadata(raw, &p)
		p.Extra = extra
		return p, err

	case KindDownload, KindImageUpload:
		var p FilePayload
		extra, err := decodeMetadata(raw, &p)
		p.Extra = extra
		return p, err

	case KindAIChat, KindConversationCreate:
		var p ChatPayload
		extra, err := decodeMetadata(raw, &p)
		p.Extra = extra
		return p, err

	case KindUserSignup, KindUserLogin, KindUserLogout:
		var p AuthPayload
		extra, err := decodeMetadata(raw, &p)
		p.Extra = extra
		return p, err

	case KindError:
		var p ErrorPayload
		extra, err := decodeMetadata(raw, &p)
		p.Extra = extra
		return p, err

	case KindPerformance:
		var p PerformancePayload
		extra, err := decodeMetadata(raw, &p)
		p.Extra = extra
		return p, err

	case KindUserAction, KindParkSave, KindParkVisit, KindReviewCreate, KindReviewHelpful,
		KindBlogShare, KindEventRegister:
		var p ActionPayload
		extra, err := decodeMetadata(raw, &p)
		p.Extra = extra
		return p, err

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeMetadata(raw map[string]any, dst any) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		WeaklyTypedInput: true,
		Metadata:         &md,
	})
	if err != nil {
		return nil, fmt.Errorf("create metadata decoder: %w", err)
	}

	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, decodeErr)
	}

	if len(md.Unused) == 0 {
		return nil, nil
	}

	extra := make(map[string]any, len(md.Unused))
	for _, key := range md.Unused {
		if v, ok := raw[key]; ok {
			extra[key] = v
		}
	}
	return extra, nil
}

// MarshalPayload renders p as a flat JSON object: the variant's known fields
// plus its Extra keys. Known fields win on collision. A nil payload
// marshals as {}.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}

	known, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	extra := p.extra()
	if len(extra) == 0 {
		return known, nil
	}

	merged := make(map[string]any, len(extra))
	maps.Copy(merged, extra)

	var fields map[string]any
	if unmarshalErr := json.Unmarshal(known, &fields); unmarshalErr != nil {
		return nil, fmt.Errorf("merge payload fields: %w", unmarshalErr)
	}
	maps.Copy(merged, fields)

	return json.Marshal(merged)
}
