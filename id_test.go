package collection

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestIdParse(t *testing.T) {
	id := NewId()

	parsed, err := ParseId(id.String())
	assert.Equal(t, err, nil)
	assert.Equal(t, parsed, id)

	fromBytes, err := IdFromBytes(id.Bytes())
	assert.Equal(t, err, nil)
	assert.Equal(t, fromBytes, id)

	_, err = IdFromBytes([]byte{0x01})
	assert.NotEqual(t, err, nil)

	_, err = ParseId("not a uuid")
	assert.NotEqual(t, err, nil)
}

func TestIdJson(t *testing.T) {
	id := NewId()

	b, err := json.Marshal(&id)
	assert.Equal(t, err, nil)

	var out Id
	err = json.Unmarshal(b, &out)
	assert.Equal(t, err, nil)
	assert.Equal(t, out, id)
}
