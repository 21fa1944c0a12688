package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Item is the catalog record carried in create and update payloads.
type Item struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	Price       float64           `json:"price,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
}

// Metadata keys stored next to each indexed vector.
const (
	MetaCategory  = "category"
	MetaName      = "name"
	MetaPrice     = "price"
	MetaUpdatedAt = "updated_at"
)

func DecodeItem(payload []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(payload, &item); err != nil {
		return Item{}, fmt.Errorf("decode item: %w", err)
	}
	if item.Name == "" && item.Description == "" && item.Category == "" && len(item.Attributes) == 0 {
		return Item{}, errors.New("decode item: no embeddable fields")
	}
	return item, nil
}

// Metadata returns the scalar fields used for filtering and display. updated_at falls
// back to the event's produced_at when the item does not carry one.
func (i Item) Metadata(producedAt time.Time) map[string]interface{} {
	updatedAt := i.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = producedAt
	}
	return map[string]interface{}{
		MetaCategory:  i.Category,
		MetaName:      i.Name,
		MetaPrice:     i.Price,
		MetaUpdatedAt: updatedAt.UTC().Format(time.RFC3339),
	}
}

// Text is the document handed to text embedders: name, description, category and
// the attributes in key order.
func (i Item) Text() string {
	var b strings.Builder
	b.WriteString(i.Name)
	b.WriteByte(' ')
	b.WriteString(i.Description)
	b.WriteString(" Category: ")
	b.WriteString(i.Category)
	keys := make([]string, 0, len(i.Attributes))
	for k := range i.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if i.Attributes[k] == "" {
			continue
		}
		fmt.Fprintf(&b, " %s: %s", k, i.Attributes[k])
	}
	return b.String()
}
