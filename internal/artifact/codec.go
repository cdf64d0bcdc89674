package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
)

const fence = "```"

// StripFences removes one enclosing markdown code fence, with or without a
// json tag, from text. Text without a fence is returned trimmed.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, fence) {
		s = s[len(fence):]
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), fence)
	return strings.TrimSpace(s)
}

// Decode strips fences from text and decodes the JSON inside into v.
func Decode(text string, v any) error {
	body := StripFences(text)
	if body == "" {
		return fmt.Errorf("%w: empty text", ErrDecode)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// Encode renders v as artifact text. Strings pass through unchanged;
// everything else is JSON encoded.
func Encode(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("artifact: encode: %w", err)
	}
	return string(data), nil
}

// Fence wraps text in a json code block, the way models tend to return it.
func Fence(text string) string {
	return fence + "json\n" + text + "\n" + fence
}
