package gltf

import "errors"

// Sentinel errors for glTF decoding. Callers test with errors.Is; the
// returned errors wrap these with the offending value.
var (
	ErrNotAGlbFile             = errors.New("not a GLB file")
	ErrUnsupportedVersion      = errors.New("unsupported glTF version")
	ErrMissingJSONChunk        = errors.New("GLB is missing its JSON chunk")
	ErrMissingBinaryChunk      = errors.New("GLB is missing its binary chunk")
	ErrMalformedAsset          = errors.New("malformed glTF asset")
	ErrUnsupportedAccessorType = errors.New("unsupported accessor type")
)
