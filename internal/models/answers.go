package models

import "encoding/json"

// Answers maps an answer field to a JSON-serializable value.
type Answers map[string]any

// Clone returns a deep copy, so snapshots never alias the live map.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge copies every field of src into a, overwriting existing keys.
func (a Answers) Merge(src Answers) {
	for k, v := range src {
		a[k] = v
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		s := make([]string, len(t))
		copy(s, t)
		return s
	}
	return v
}

// DecodeAnswers parses a cached snapshot. Numbers decode as float64.
func DecodeAnswers(raw string) (Answers, error) {
	out := Answers{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Answers{}
	}
	return out, nil
}

// Encode serializes the answers for the durable cache.
func (a Answers) Encode() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
