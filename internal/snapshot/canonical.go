package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// CanonicalJSON produces a deterministic JSON encoding:
// - Keys sorted lexicographically
// - No insignificant whitespace
// - Timestamps as RFC 3339 with nanoseconds, in UTC
// - current is always present, null when nothing is active
func CanonicalJSON(s *StatusSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(buildOrdered(s)); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ComputeRev hashes the canonical encoding of s without its rev field.
// Returns "sha256:<hex>" format.
func ComputeRev(s *StatusSnapshot) (string, error) {
	unsigned := *s
	unsigned.Rev = ""
	data, err := CanonicalJSON(&unsigned)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:]), nil
}

func buildOrdered(s *StatusSnapshot) orderedMap {
	result := make(orderedMap, 0, 6)

	if s.Current != nil {
		result = append(result, keyValue{"current", orderedMap{
			{"completed", s.Current.Completed},
			{"id", s.Current.ID},
			{"percentage", s.Current.Percentage},
			{"total", s.Current.Total},
		}})
	} else {
		result = append(result, keyValue{"current", nil})
	}
	result = append(result, keyValue{"generatedAt", formatTime(s.GeneratedAt)})
	result = append(result, keyValue{"lastUpdate", formatTime(s.LastUpdate)})
	result = append(result, keyValue{"openCount", s.OpenCount})
	if s.Rev != "" {
		result = append(result, keyValue{"rev", s.Rev})
	}
	if len(s.SourceModifiedAt) > 0 {
		result = append(result, keyValue{"sourceModifiedAt", buildOrderedTimes(s.SourceModifiedAt)})
	}

	return result
}

func buildOrderedTimes(times map[string]time.Time) orderedMap {
	keys := make([]string, 0, len(times))
	for k := range times {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(orderedMap, 0, len(keys))
	for _, k := range keys {
		result = append(result, keyValue{k, formatTime(times[k])})
	}
	return result
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// orderedMap is a slice of key-value pairs that marshals as a JSON object
// with keys in the order they appear in the slice.
type orderedMap []keyValue

type keyValue struct {
	Key   string
	Value interface{}
}

func (om orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, kv := range om {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyJSON, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')

		valJSON, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
