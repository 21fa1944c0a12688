package eventlog

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// partitionStreams lists the physical stream keys backing a logical stream.
func partitionStreams(stream string, partitions int) []string {
	if partitions <= 1 {
		return []string{stream}
	}
	out := make([]string, partitions)
	for i := range out {
		out[i] = stream + ":" + strconv.Itoa(i)
	}
	return out
}

// partitionFor maps a key onto one of the physical streams. All events of one item land
// on the same partition and are therefore delivered in append order.
func partitionFor(stream, key string, partitions int) string {
	if partitions <= 1 {
		return stream
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return stream + ":" + strconv.Itoa(int(h.Sum32()%uint32(partitions)))
}

func messageID(physical, entryID string) string {
	return physical + "/" + entryID
}

func splitMessageID(id string) (physical, entryID string, err error) {
	i := strings.LastIndex(id, "/")
	if i <= 0 || i == len(id)-1 {
		return "", "", fmt.Errorf("malformed message id %q", id)
	}
	return id[:i], id[i+1:], nil
}

// belongsTo reports whether physical is one of the partitions of stream.
func belongsTo(physical, stream string, partitions int) bool {
	for _, s := range partitionStreams(stream, partitions) {
		if s == physical {
			return true
		}
	}
	return false
}

// groupIDsByStream validates ids against the logical stream and buckets entry ids per partition.
func groupIDsByStream(stream string, partitions int, ids []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, id := range ids {
		physical, entryID, err := splitMessageID(id)
		if err != nil {
			return nil, err
		}
		if !belongsTo(physical, stream, partitions) {
			return nil, fmt.Errorf("message id %q does not belong to stream %s", id, stream)
		}
		out[physical] = append(out[physical], entryID)
	}
	return out, nil
}
