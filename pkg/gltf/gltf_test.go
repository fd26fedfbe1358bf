package gltf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	doc, err := Unmarshal([]byte(`{
		"asset": {"version": "2.0", "generator": "test"},
		"scene": 0,
		"scenes": [{"nodes": [0]}],
		"nodes": [{"mesh": 0, "translation": [1, 2, 3]}],
		"meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
		"accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"}],
		"bufferViews": [{"buffer": 0, "byteLength": 36}],
		"buffers": [{"byteLength": 36}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "test", doc.Asset.Generator)
	require.NotNil(t, doc.Nodes[0].Translation)
	assert.Equal(t, [3]float32{1, 2, 3}, *doc.Nodes[0].Translation)
	assert.Nil(t, doc.Nodes[0].Rotation)
	assert.Nil(t, doc.Meshes[0].Primitives[0].Mode)
	assert.Equal(t, Float, doc.Accessors[0].ComponentType)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"syntax", `{"asset":`, ErrMalformedAsset},
		{"version 1", `{"asset":{"version":"1.0"}}`, ErrUnsupportedVersion},
		{"missing version", `{"asset":{}}`, ErrUnsupportedVersion},
		{"dangling child", `{"asset":{"version":"2.0"},"nodes":[{"children":[3]}]}`, ErrMalformedAsset},
		{"dangling mesh", `{"asset":{"version":"2.0"},"nodes":[{"mesh":0}]}`, ErrMalformedAsset},
		{"dangling view", `{"asset":{"version":"2.0"},"accessors":[{"bufferView":1,"componentType":5126,"count":1,"type":"SCALAR"}]}`, ErrMalformedAsset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.json))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
