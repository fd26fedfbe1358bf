package loader

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// decodeDataURI splits a data URI into its media type and payload.
// Base64 payloads may omit padding; others are percent-decoded.
func decodeDataURI(uri string) (mediaType string, data []byte, err error) {
	if len(uri) < 5 || !strings.EqualFold(uri[:5], "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	rest := uri[5:]
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI without payload")
	}

	isBase64 := false
	params := strings.Split(header, ";")
	mediaType = params[0]
	for _, p := range params[1:] {
		if strings.EqualFold(p, "base64") {
			isBase64 = true
		}
	}

	if !isBase64 {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("data URI: %w", err)
		}
		return mediaType, []byte(s), nil
	}

	payload = strings.TrimRight(payload, "=")
	data, err = base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data URI: %w", err)
	}
	return mediaType, data, nil
}
