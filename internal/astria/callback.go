package astria

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// CallbackPayload is the normalized body of a prompt or tune callback.
type CallbackPayload struct {
	ID     string
	Images []string
	Failed bool
	Reason string
}

type rawEntity struct {
	ID     json.Number     `json:"id"`
	Status string          `json:"status"`
	Images []string        `json:"images"`
	Error  json.RawMessage `json:"error"`
}

type rawCallback struct {
	rawEntity
	Prompt *rawEntity `json:"prompt"`
	Tune   *rawEntity `json:"tune"`
}

// ParseCallback accepts both the flat shape and the nested prompt/tune echo.
// Images from the flat array win; the nested object fills what is missing.
func ParseCallback(body []byte) (CallbackPayload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return CallbackPayload{}, fmt.Errorf("empty callback body")
	}

	var raw rawCallback
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return CallbackPayload{}, fmt.Errorf("decode callback: %w", err)
	}

	out := CallbackPayload{ID: raw.ID.String()}
	entities := []*rawEntity{&raw.rawEntity, raw.Prompt, raw.Tune}
	for _, e := range entities {
		if e == nil {
			continue
		}
		if out.ID == "" {
			out.ID = e.ID.String()
		}
		if len(out.Images) == 0 {
			out.Images = cleanImages(e.Images)
		}
		if failed, reason := entityFailed(e); failed {
			out.Failed = true
			if out.Reason == "" {
				out.Reason = reason
			}
		}
	}
	return out, nil
}

func entityFailed(e *rawEntity) (bool, string) {
	switch strings.ToLower(strings.TrimSpace(e.Status)) {
	case "failed", "error", "cancelled", "canceled":
		return true, e.Status
	}
	errText := strings.TrimSpace(string(e.Error))
	switch errText {
	case "", "null", `""`, "false", "{}":
		return false, ""
	}
	var msg string
	if err := json.Unmarshal(e.Error, &msg); err == nil {
		return true, msg
	}
	return true, errText
}

func cleanImages(images []string) []string {
	var out []string
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}
