package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/engine"
)

func TestDecodeData_List(t *testing.T) {
	coll, err := decodeData([]byte("- 1\n- two\n- {three: 3}\n"))
	require.NoError(t, err)

	list, ok := coll.(*engine.List)
	require.True(t, ok, "got %T", coll)
	require.Equal(t, 3, list.Len())
	assert.Equal(t, 1, list.At(0))
	assert.Equal(t, "two", list.At(1))
	assert.Equal(t, map[string]any{"three": 3}, list.At(2))
}

func TestDecodeData_MappingKeepsFileOrder(t *testing.T) {
	coll, err := decodeData([]byte("zebra: 1\napple: 2\nmango: 3\n"))
	require.NoError(t, err)

	obj, ok := coll.(*engine.Object)
	require.True(t, ok, "got %T", coll)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, obj.OwnKeys())

	v, found := obj.Get("apple")
	assert.True(t, found)
	assert.Equal(t, 2, v)
}

func TestDecodeData_JSON(t *testing.T) {
	coll, err := decodeData([]byte(`{"b": [1, 2], "a": null}`))
	require.NoError(t, err)

	obj, ok := coll.(*engine.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, obj.OwnKeys())
}

func TestDecodeData_Scalar(t *testing.T) {
	coll, err := decodeData([]byte("42\n"))
	require.NoError(t, err)
	assert.Equal(t, 42, coll)
}

func TestDecodeData_Errors(t *testing.T) {
	_, err := decodeData([]byte(""))
	require.Error(t, err)

	_, err = decodeData([]byte("[unterminated"))
	require.Error(t, err)
}

func TestLoadData(t *testing.T) {
	_, err := LoadData("/nonexistent/data.yaml")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)

	bad := writeData(t, "bad.yaml", "key: [\n")
	_, err = LoadData(bad)
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeBadData, loadErr.Code)
	assert.Contains(t, loadErr.Message, "bad.yaml")

	good := writeData(t, "good.yaml", "[x]\n")
	coll, err := LoadData(good)
	require.NoError(t, err)
	assert.IsType(t, &engine.List{}, coll)
}
