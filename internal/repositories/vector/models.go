package vector

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

type Metadata map[string]interface{}

type Entry struct {
	ItemID   string
	Vector   []float32
	Metadata Metadata
	Version  time.Time
}

type QueryRequest struct {
	Vector   []float32
	K        int
	MinScore float32
	Filter   *Filter
	// ExcludeID drops one item from the results, typically the query item itself.
	ExcludeID string
}

type SimilarCandidate struct {
	ItemID   string   `json:"item_id"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Filter is a conjunction of metadata predicates. A nil Filter matches everything.
type Filter struct {
	Categories []string          `json:"categories,omitempty"`
	PriceMin   *float64          `json:"price_min,omitempty"`
	PriceMax   *float64          `json:"price_max,omitempty"`
	Equals     map[string]string `json:"equals,omitempty"`
}

const (
	fieldCategory = "category"
	fieldPrice    = "price"
)

func (f *Filter) Empty() bool {
	return f == nil || (len(f.Categories) == 0 && f.PriceMin == nil && f.PriceMax == nil && len(f.Equals) == 0)
}

func (f *Filter) Match(m Metadata) bool {
	if f.Empty() {
		return true
	}
	if len(f.Categories) > 0 {
		category, _ := m[fieldCategory].(string)
		found := false
		for _, c := range f.Categories {
			if c == category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PriceMin != nil || f.PriceMax != nil {
		price, ok := toFloat(m[fieldPrice])
		if !ok {
			return false
		}
		if f.PriceMin != nil && price < *f.PriceMin {
			return false
		}
		if f.PriceMax != nil && price > *f.PriceMax {
			return false
		}
	}
	for key, want := range f.Equals {
		got, ok := m[key]
		if !ok || toString(got) != want {
			return false
		}
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, _ := json.Marshal(s)
		return string(b)
	}
}

// rank sorts by descending score then ascending item id and keeps the first k.
func rank(results []SimilarCandidate, k int) []SimilarCandidate {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ItemID < results[j].ItemID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func copyMetadata(m Metadata) Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
