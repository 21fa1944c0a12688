package metric

import (
	"strconv"
	"strings"
)

const (
	TagEnv            = "env"
	TagService        = "service"
	TagPath           = "path"
	TagMethod         = "method"
	TagHttpStatusCode = "http_status_code"
	TagStream         = "stream"
	TagGroup          = "group"
	TagConsumer       = "consumer"
	TagEventType      = "event_type"
	TagOutcome        = "outcome"
	TagBackend        = "backend"
	TagOperation      = "operation"
	TagSink           = "sink"
	TagProvider       = "provider"
	TagExternalName   = "external_service"
	TagBreaker        = "circuit_breaker"
	TagFromState      = "from"
	TagToState        = "to"

	TagValueSuccess = "success"
	TagValueFailure = "failure"
	TagValueStale   = "stale"
	TagValuePoison  = "poison"
)

type Tag struct {
	Name  string
	Value string
}

func NewTag(name, value string) Tag {
	return Tag{Name: name, Value: value}
}

// BuildTag renders tags in the statsd "name:value" form.
func BuildTag(tags ...Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, TagAsString(t.Name, t.Value))
	}
	return out
}

// BuildExternalHTTPServiceTags tags a call made to a dependency over HTTP.
func BuildExternalHTTPServiceTags(service, path, method string, statusCode int) []string {
	return BuildTag(
		NewTag(TagExternalName, service),
		NewTag(TagPath, path),
		NewTag(TagMethod, method),
		NewTag(TagHttpStatusCode, strconv.Itoa(statusCode)),
	)
}

func TagAsString(name, value string) string {
	var b strings.Builder
	b.Grow(len(name) + len(value) + 1)
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(value)
	return b.String()
}
