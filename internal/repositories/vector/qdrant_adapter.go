package vector

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys the index reserves next to the item metadata.
const (
	payloadItemID    = "item_id"
	payloadVersion   = "version_ns"
	payloadDeleted   = "deleted"
	payloadRemovedAt = "removed_at_ns"
)

var pointNamespace = uuid.MustParse("6f1c2e4a-8d0b-4a57-9a51-2b7c9b0d6e11")

// pointID maps an item id onto a stable UUID point id.
func pointID(itemID string) *qdrant.PointId {
	return &qdrant.PointId{
		PointIdOptions: &qdrant.PointId_Uuid{Uuid: uuid.NewSHA1(pointNamespace, []byte(itemID)).String()},
	}
}

func adaptToPayloadValue(value interface{}) *qdrant.Value {
	switch v := value.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(v)}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: toString(v)}}
	}
}

func adaptFromPayloadValue(v *qdrant.Value) interface{} {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}

type pointState struct {
	itemID    string
	meta      Metadata
	version   time.Time
	deleted   bool
	removedAt time.Time
}

func toPayload(s pointState) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(s.meta)+4)
	for key, value := range s.meta {
		payload[key] = adaptToPayloadValue(value)
	}
	payload[payloadItemID] = adaptToPayloadValue(s.itemID)
	payload[payloadVersion] = adaptToPayloadValue(s.version.UnixNano())
	payload[payloadDeleted] = adaptToPayloadValue(s.deleted)
	if s.deleted {
		payload[payloadRemovedAt] = adaptToPayloadValue(s.removedAt.UnixNano())
	}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) pointState {
	s := pointState{meta: make(Metadata, len(payload))}
	for key, value := range payload {
		switch key {
		case payloadItemID:
			s.itemID = value.GetStringValue()
		case payloadVersion:
			s.version = time.Unix(0, value.GetIntegerValue()).UTC()
		case payloadDeleted:
			s.deleted = value.GetBoolValue()
		case payloadRemovedAt:
			s.removedAt = time.Unix(0, value.GetIntegerValue()).UTC()
		default:
			s.meta[key] = adaptFromPayloadValue(value)
		}
	}
	return s
}

func fieldCondition(field *qdrant.FieldCondition) *qdrant.Condition {
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: field}}
}

func keywordsCondition(field string, values ...string) *qdrant.Condition {
	return fieldCondition(&qdrant.FieldCondition{
		Key:   field,
		Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: values}}},
	})
}

func boolCondition(field string, value bool) *qdrant.Condition {
	return fieldCondition(&qdrant.FieldCondition{
		Key:   field,
		Match: &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: value}},
	})
}

func rangeCondition(field string, r *qdrant.Range) *qdrant.Condition {
	return fieldCondition(&qdrant.FieldCondition{Key: field, Range: r})
}

// buildQdrantFilter translates a Filter and always excludes tombstones.
func buildQdrantFilter(f *Filter) *qdrant.Filter {
	out := &qdrant.Filter{MustNot: []*qdrant.Condition{boolCondition(payloadDeleted, true)}}
	if f.Empty() {
		return out
	}
	if len(f.Categories) > 0 {
		out.Must = append(out.Must, keywordsCondition(fieldCategory, f.Categories...))
	}
	if f.PriceMin != nil || f.PriceMax != nil {
		out.Must = append(out.Must, rangeCondition(fieldPrice, &qdrant.Range{Gte: f.PriceMin, Lte: f.PriceMax}))
	}
	for key, value := range f.Equals {
		out.Must = append(out.Must, equalsCondition(key, value))
	}
	return out
}

// equalsCondition matches the payload types whose canonical string form is value, the
// same comparison Filter.Match makes: "799" matches the keyword, the integer and the double.
func equalsCondition(field, value string) *qdrant.Condition {
	should := []*qdrant.Condition{keywordsCondition(field, value)}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil && strconv.FormatInt(n, 10) == value {
		should = append(should, fieldCondition(&qdrant.FieldCondition{
			Key:   field,
			Match: &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: n}},
		}))
	}
	if x, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) &&
		strconv.FormatFloat(x, 'f', -1, 64) == value {
		should = append(should, rangeCondition(field, &qdrant.Range{Gte: &x, Lte: &x}))
	}
	if b, err := strconv.ParseBool(value); err == nil && strconv.FormatBool(b) == value {
		should = append(should, boolCondition(field, b))
	}
	if len(should) == 1 {
		return should[0]
	}
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Filter{Filter: &qdrant.Filter{Should: should}}}
}
