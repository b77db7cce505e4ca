package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ParseFrontMatter splits content into front matter and body. It returns the
// front matter, the trimmed body and the detected format (yaml, toml, json).
func ParseFrontMatter(content []byte) (map[string]interface{}, string, string, error) {
	str := strings.ReplaceAll(string(content), "\r\n", "\n")

	if head, body, ok := splitDelimited(str, "---"); ok {
		var fm map[string]interface{}
		if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
			return nil, "", "", fmt.Errorf("frontmatter: yaml: %w", err)
		}
		return sanitizeFrontMatter(fm), strings.TrimSpace(body), "yaml", nil
	}
	if head, body, ok := splitDelimited(str, "+++"); ok {
		var fm map[string]interface{}
		if err := toml.Unmarshal([]byte(head), &fm); err != nil {
			return nil, "", "", fmt.Errorf("frontmatter: toml: %w", err)
		}
		return sanitizeFrontMatter(fm), strings.TrimSpace(body), "toml", nil
	}
	if strings.HasPrefix(strings.TrimSpace(str), "{") {
		dec := json.NewDecoder(strings.NewReader(str))
		var fm map[string]interface{}
		if err := dec.Decode(&fm); err != nil {
			return nil, "", "", fmt.Errorf("frontmatter: json: %w", err)
		}
		rest := str[dec.InputOffset():]
		return sanitizeFrontMatter(fm), strings.TrimSpace(rest), "json", nil
	}

	return nil, "", "", fmt.Errorf("frontmatter: unknown format")
}

// splitDelimited cuts str into the block between an opening delim line and
// the next line that is exactly delim, and whatever follows it.
func splitDelimited(str, delim string) (string, string, bool) {
	if !strings.HasPrefix(str, delim+"\n") {
		return "", "", false
	}
	rest := str[len(delim)+1:]
	for offset := 0; offset <= len(rest); {
		line, next := rest[offset:], len(rest)
		if end := strings.IndexByte(line, '\n'); end >= 0 {
			line, next = line[:end], offset+end+1
		}
		if strings.TrimRight(line, " \t") == delim {
			return rest[:offset], rest[next:], true
		}
		if next == len(rest) {
			break
		}
		offset = next
	}
	return "", "", false
}

func sanitizeFrontMatter(fm map[string]interface{}) map[string]interface{} {
	if fm == nil {
		return map[string]interface{}{}
	}
	sanitized := make(map[string]interface{}, len(fm))
	for k, v := range fm {
		sanitized[k] = sanitizeFrontMatterValue(v)
	}
	return sanitized
}

func sanitizeFrontMatterValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return sanitizeFrontMatter(v)
	case map[interface{}]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, inner := range v {
			normalized[fmt.Sprint(key)] = sanitizeFrontMatterValue(inner)
		}
		return normalized
	case []interface{}:
		slice := make([]interface{}, len(v))
		for i := range v {
			slice[i] = sanitizeFrontMatterValue(v[i])
		}
		return slice
	default:
		return v
	}
}

// stringField reads a front matter value as a string. Timestamps come back
// in the content API's publication date format.
func stringField(fm map[string]interface{}, key string) string {
	switch v := fm[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		return v.UTC().Format("2006-01-02T15:04:05-0700")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// nestedURL reads fm[key] either as a string or as a map holding "url".
func nestedURL(fm map[string]interface{}, key string) string {
	if m, ok := fm[key].(map[string]interface{}); ok {
		return stringField(m, "url")
	}
	return stringField(fm, key)
}
