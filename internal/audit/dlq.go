package audit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrorHeaders extracts error_type and error_string from a dead-lettered record.
func ErrorHeaders(headers []kgo.RecordHeader) (string, string) {
	errorType, errorString := "N/A", "N/A"
	for _, h := range headers {
		switch h.Key {
		case "error_type":
			errorType = string(h.Value)
		case "error_string":
			errorString = string(h.Value)
		}
	}
	return errorType, errorString
}

// ParsePartitionOffset parses "partition:offset", e.g. "0:123".
func ParsePartitionOffset(arg string) (int32, int64, error) {
	p, o, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid format %q, expected partition:offset, e.g. 0:123", arg)
	}
	partition, err := strconv.ParseInt(p, 10, 32)
	if err != nil || partition < 0 {
		return 0, 0, fmt.Errorf("invalid partition %q", p)
	}
	offset, err := strconv.ParseInt(o, 10, 64)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset %q", o)
	}
	return int32(partition), offset, nil
}

// RetryRecord builds the record that re-publishes a dead-lettered event to
// targetTopic, keeping its key and event_type header.
func RetryRecord(dead *kgo.Record, targetTopic string) *kgo.Record {
	r := &kgo.Record{Topic: targetTopic, Key: dead.Key, Value: dead.Value}
	for _, h := range dead.Headers {
		if h.Key == "event_type" {
			r.Headers = append(r.Headers, h)
		}
	}
	return r
}
