package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")

// DecodeObject parses a model response as a JSON object. Markdown code fences
// around the object are tolerated. Malformed output is reported as an error
// the caller is expected to treat as a soft failure.
func DecodeObject(response string) (map[string]any, error) {
	content := response
	if m := fencedJSON.FindStringSubmatch(response); m != nil {
		content = m[1]
	}
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") && len(content) >= 6 {
		content = strings.TrimSpace(content[3 : len(content)-3])
	}
	if content == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	return out, nil
}
