package qdrantDB

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	recordIdKey = "record_id"
	contentKey  = "content"
	metadataKey = "metadata"
)

// pointId maps a record id onto a qdrant id. Qdrant only accepts UUIDs and
// unsigned integers, so other ids get a stable name-based UUID.
func pointId(id string) *qdrant.PointId {
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewID(u.String())
	}
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String())
}

func pointIds(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		out[i] = pointId(id)
	}
	return out
}

// normalize reduces metadata to the value types qdrant.NewValue accepts.
func normalize(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeValue(out).(map[string]any), nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeValue(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeValue(val)
		}
		return t
	default:
		return v
	}
}

func buildPayload(r vectorDB.Record) (map[string]*qdrant.Value, error) {
	meta, err := normalize(r.Metadata)
	if err != nil {
		return nil, err
	}
	return qdrant.TryValueMap(map[string]any{
		recordIdKey: r.Id,
		contentKey:  r.Content,
		metadataKey: meta,
	})
}

func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		return fromFields(k.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		values := k.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = fromValue(item)
		}
		return out
	default:
		return nil
	}
}

func fromFields(fields map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = fromValue(v)
	}
	return out
}

func recordFromPayload(payload map[string]*qdrant.Value) (id, content string, metadata map[string]any) {
	id = payload[recordIdKey].GetStringValue()
	content = payload[contentKey].GetStringValue()
	if meta := payload[metadataKey].GetStructValue(); meta != nil {
		metadata = fromFields(meta.GetFields())
	}
	return id, content, metadata
}

// buildFilter turns the equality filter into qdrant conditions where possible.
// The remainder is returned for post-filtering.
func buildFilter(filter vectorDB.Filter) (*qdrant.Filter, vectorDB.Filter) {
	if len(filter) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conditions []*qdrant.Condition
	rest := vectorDB.Filter{}
	for _, k := range keys {
		field := fmt.Sprintf("%s.%s", metadataKey, k)
		switch v := filter[k].(type) {
		case string:
			conditions = append(conditions, qdrant.NewMatchKeyword(field, v))
		case bool:
			conditions = append(conditions, qdrant.NewMatchBool(field, v))
		case int:
			conditions = append(conditions, qdrant.NewMatchInt(field, int64(v)))
		case int64:
			conditions = append(conditions, qdrant.NewMatchInt(field, v))
		case float64:
			if v == float64(int64(v)) {
				conditions = append(conditions, qdrant.NewMatchInt(field, int64(v)))
			} else {
				rest[k] = v
			}
		default:
			rest[k] = v
		}
	}
	if len(rest) == 0 {
		rest = nil
	}
	if len(conditions) == 0 {
		return nil, rest
	}
	return &qdrant.Filter{Must: conditions}, rest
}
