package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReply() *browsable.Reply {
	dir := browsable.NewItem("A", browsable.ChildrenYes)
	dir.Icon = "sap-icon://folder-blank"

	file := browsable.NewItem("a.txt", browsable.ChildrenNo)
	file.SetAttr("mtime", "2024-01-01 10:00")
	file.SetAttr("fsize", "12 B")

	return &browsable.Reply{Path: "/", First: 0, Total: 3, Items: []*browsable.Item{dir, file}}
}

func TestJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON{}.Encode(&buf, sampleReply()))

	out := buf.String()
	assert.Contains(t, out, `"nchilds":3`)
	assert.Contains(t, out, `"nodes":[`)
	assert.Contains(t, out, `"name":"A","nchilds":1`)
	assert.NotContains(t, out, "partial")
}

func TestJSONDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON{Indent: true}.Encode(&buf, sampleReply()))

	reply, err := JSON{}.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 3, reply.Total)
	require.Len(t, reply.Items, 2)
	require.Equal(t, browsable.ChildrenYes, reply.Items[0].Children)
	require.Equal(t, "12 B", reply.Items[1].Attrs["fsize"])
}

func TestXDRLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XDR{}.Encode(&buf, &browsable.Reply{Path: "/a", First: 5, Total: 7, Partial: true, Items: []*browsable.Item{}}))

	data := buf.Bytes()
	// string "/a": length + 2 bytes padded to 4
	require.Equal(t, uint32(2), binary.BigEndian.Uint32(data[0:4]))
	require.Equal(t, []byte{'/', 'a', 0, 0}, data[4:8])
	// first and nchilds are hypers
	require.Equal(t, uint64(5), binary.BigEndian.Uint64(data[8:16]))
	require.Equal(t, uint64(7), binary.BigEndian.Uint64(data[16:24]))
	require.Equal(t, uint32(1), binary.BigEndian.Uint32(data[24:28]))
	require.Equal(t, uint32(0), binary.BigEndian.Uint32(data[28:32]))
	require.Len(t, data, 32)
}

func TestLargeFirstIsEchoed(t *testing.T) {
	reply := &browsable.Reply{Path: "/", First: 1 << 32, Total: 3, Items: []*browsable.Item{}}

	var js bytes.Buffer
	require.NoError(t, JSON{}.Encode(&js, reply))
	assert.Contains(t, js.String(), `"first":4294967296`)

	decoded, err := JSON{}.Decode(&js)
	require.NoError(t, err)
	require.Equal(t, 1<<32, decoded.First)

	var xb bytes.Buffer
	require.NoError(t, XDR{}.Encode(&xb, reply))
	decoded, err = XDR{}.Decode(&xb)
	require.NoError(t, err)
	require.Equal(t, 1<<32, decoded.First)
	require.Equal(t, 3, decoded.Total)
}

func TestXDRDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XDR{}.Encode(&buf, sampleReply()))

	reply, err := XDR{}.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, "/", reply.Path)
	require.Equal(t, "A", reply.Items[0].Name)
	require.Equal(t, "sap-icon://folder-blank", reply.Items[0].Icon)
	require.Equal(t, map[string]string{"fsize": "12 B", "mtime": "2024-01-01 10:00"}, reply.Items[1].Attrs)
}

func TestXDRDecodeTruncated(t *testing.T) {
	_, err := XDR{}.Decode(bytes.NewReader([]byte{0, 0, 0, 9, 'x'}))
	require.Error(t, err)
}

func TestAttributesAreKeySorted(t *testing.T) {
	wr := FromReply(sampleReply())
	require.Equal(t, []Attr{{"fsize", "12 B"}, {"mtime", "2024-01-01 10:00"}}, wr.Items[1].Attrs)
	require.Nil(t, wr.Items[0].Attrs)
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"", ContentTypeJSON},
		{"*/*", ContentTypeJSON},
		{"application/x-xdr", ContentTypeXDR},
		{"text/html, application/x-xdr;q=0.9", ContentTypeXDR},
		{"application/json, application/x-xdr", ContentTypeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			assert.Equal(t, tt.want, Negotiate(tt.accept).ContentType())
		})
	}
}
