package domain

import "strings"

// cleanText makes s storable in a Postgres TEXT or JSONB column: NUL bytes
// are removed and invalid UTF-8 sequences become U+FFFD.
func cleanText(s string) string {
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// cleanValue applies cleanText to every string inside decoded JSON,
// including map keys.
func cleanValue(v any) any {
	switch t := v.(type) {
	case string:
		return cleanText(t)
	case map[string]any:
		return cleanMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cleanValue(item)
		}
		return out
	default:
		return v
	}
}

func cleanMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[cleanText(k)] = cleanValue(v)
	}
	return out
}

func (c ContentRefs) clean() ContentRefs {
	return ContentRefs{
		ParkCode:       cleanText(c.ParkCode),
		BlogID:         cleanText(c.BlogID),
		EventID:        cleanText(c.EventID),
		ReviewID:       cleanText(c.ReviewID),
		ConversationID: cleanText(c.ConversationID),
	}
}

func (e ErrorDetail) clean() ErrorDetail {
	return ErrorDetail{
		Message: cleanText(e.Message),
		Stack:   cleanText(e.Stack),
		Code:    cleanText(e.Code),
	}
}

func (s Software) clean() Software {
	return Software{Name: cleanText(s.Name), Version: cleanText(s.Version)}
}

func (c ClientContext) clean() ClientContext {
	c.Device = Device{
		Type:  cleanText(c.Device.Type),
		Brand: cleanText(c.Device.Brand),
		Model: cleanText(c.Device.Model),
	}
	c.Browser = c.Browser.clean()
	c.OS = c.OS.clean()
	c.Location.Country = cleanText(c.Location.Country)
	c.Location.Region = cleanText(c.Location.Region)
	c.Location.City = cleanText(c.Location.City)
	c.UserAgent = cleanText(c.UserAgent)
	c.IPAddress = cleanText(c.IPAddress)
	c.Referrer = cleanText(c.Referrer)
	c.PageURL = cleanText(c.PageURL)
	c.PageTitle = cleanText(c.PageTitle)
	return c
}
