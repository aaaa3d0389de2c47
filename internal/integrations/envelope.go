package integrations

import "encoding/json"

// Envelope is the only thing an integration ever hands back to its caller.
type Envelope struct {
	Response Response `json:"response"`
}

// Response carries either Result (OK) or ErrorCode and Description.
type Response struct {
	OK          bool           `json:"ok"`
	Result      map[string]any `json:"result,omitempty"`
	ErrorCode   int            `json:"error_code,omitempty"`
	Description string         `json:"description,omitempty"`
}

func Success(result map[string]any) Envelope {
	if result == nil {
		result = map[string]any{}
	}
	return Envelope{Response: Response{OK: true, Result: result}}
}

func Failure(code int, description string) Envelope {
	return Envelope{Response: Response{ErrorCode: code, Description: description}}
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.OK {
		result := r.Result
		if result == nil {
			result = map[string]any{}
		}
		return json.Marshal(struct {
			OK     bool           `json:"ok"`
			Result map[string]any `json:"result"`
		}{true, result})
	}
	return json.Marshal(struct {
		OK          bool   `json:"ok"`
		ErrorCode   int    `json:"error_code"`
		Description string `json:"description"`
	}{false, r.ErrorCode, r.Description})
}
