package cacheutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// KeyDelimiter separates the prefix and parameters of a generated key
const KeyDelimiter = ":"

// GenerateKey joins prefix and params with KeyDelimiter. Strings are used
// verbatim, numbers and booleans are formatted with strconv, nil becomes
// "null" and anything else is JSON-encoded (maps encode with sorted keys).
// Parameter order is significant.
func GenerateKey(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		b.WriteString(KeyDelimiter)
		b.WriteString(formatParam(p))
	}
	return b.String()
}

func formatParam(p interface{}) string {
	switch v := p.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprint(p)
	}
	return string(data)
}
