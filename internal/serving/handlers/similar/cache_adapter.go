package similar

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/vector"
)

const (
	SimilarItem       = "si"
	SimilarVector     = "sv"
	SimilarText       = "st"
	CacheKeySeparator = ":"
	CacheVersion      = "V1"
)

func getHashForVector(vec []float32) string {
	if len(vec) == 0 {
		return "e"
	}
	hasher := fnv.New64a()
	var buf [4]byte
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		hasher.Write(buf[:])
	}
	return hashToHexString(hasher.Sum64())
}

// getHashForText keeps free-text subjects out of cache keys, bounding their length.
func getHashForText(text string) string {
	hasher := fnv.New64a()
	hasher.Write([]byte(text))
	return hashToHexString(hasher.Sum64())
}

func getHashForFilter(f *vector.Filter) string {
	if f.Empty() {
		return "e"
	}
	hasher := fnv.New64a()
	categories := append([]string(nil), f.Categories...)
	sort.Strings(categories)
	for _, c := range categories {
		hasher.Write([]byte(c))
		hasher.Write([]byte{0})
	}
	writeBound := func(tag byte, v *float64) {
		hasher.Write([]byte{tag})
		if v != nil {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(*v))
			hasher.Write(buf[:])
		}
	}
	writeBound('<', f.PriceMin)
	writeBound('>', f.PriceMax)
	keys := make([]string, 0, len(f.Equals))
	for k := range f.Equals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		hasher.Write([]byte(k))
		hasher.Write([]byte{'='})
		hasher.Write([]byte(f.Equals[k]))
		hasher.Write([]byte{0})
	}
	return hashToHexString(hasher.Sum64())
}

func hashToHexString(hash uint64) string {
	const hexChars = "0123456789abcdef"
	result := make([]byte, 16)
	for i := 0; i < 8; i++ {
		b := byte(hash >> (8 * (7 - i)))
		result[i*2] = hexChars[b>>4]
		result[i*2+1] = hexChars[b&0x0f]
	}
	return string(result)
}

func buildCacheKey(prefix, subject string, q query) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(subject) + len(CacheVersion) + 48)
	b.WriteString(prefix)
	b.WriteString(CacheKeySeparator)
	b.WriteString(subject)
	b.WriteString(CacheKeySeparator)
	b.WriteString(strconv.Itoa(q.k))
	b.WriteString(CacheKeySeparator)
	b.WriteString(strconv.FormatFloat(float64(q.minScore), 'g', -1, 32))
	b.WriteString(CacheKeySeparator)
	b.WriteString(getHashForFilter(q.filter))
	b.WriteString(CacheKeySeparator)
	b.WriteString(CacheVersion)
	return b.String()
}
