// Package wire encodes listing replies for transport.
//
// Two encodings are supported: JSON (the default, consumed by the web
// client) and XDR (RFC 4506) for compact binary clients. Both carry the same
// fields; item attributes are sent as a key-sorted list so XDR output is
// deterministic.
package wire

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"

	"github.com/marmos91/dittobrowse/pkg/browsable"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// Content types of the supported encodings.
const (
	ContentTypeJSON = "application/json"
	ContentTypeXDR  = "application/x-xdr"
)

// Attr is one presentation attribute.
type Attr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Item is the transport form of browsable.Item.
type Item struct {
	Name     string `json:"name"`
	Children uint32 `json:"nchilds"`
	Icon     string `json:"icon,omitempty"`
	Title    string `json:"title,omitempty"`
	Attrs    []Attr `json:"attrs,omitempty"`
}

// Reply is the transport form of browsable.Reply.
// First and Total are XDR hypers so any request index is echoed unchanged.
type Reply struct {
	Path    string `json:"path"`
	First   uint64 `json:"first"`
	Total   uint64 `json:"nchilds"`
	Partial bool   `json:"partial,omitempty"`
	Items   []Item `json:"nodes"`
}

// FromReply converts a listing reply to its transport form.
func FromReply(r *browsable.Reply) *Reply {
	out := &Reply{
		Path:    r.Path,
		First:   uint64(r.First),
		Total:   uint64(r.Total),
		Partial: r.Partial,
		Items:   make([]Item, 0, len(r.Items)),
	}

	for _, item := range r.Items {
		wi := Item{
			Name:     item.Name,
			Children: uint32(item.Children),
			Icon:     item.Icon,
			Title:    item.Title,
		}
		if len(item.Attrs) > 0 {
			keys := make([]string, 0, len(item.Attrs))
			for k := range item.Attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				wi.Attrs = append(wi.Attrs, Attr{Key: k, Value: item.Attrs[k]})
			}
		}
		out.Items = append(out.Items, wi)
	}

	return out
}

// ToReply converts a transport reply back to a listing reply.
func (r *Reply) ToReply() *browsable.Reply {
	out := &browsable.Reply{
		Path:    r.Path,
		First:   int(r.First),
		Total:   int(r.Total),
		Partial: r.Partial,
		Items:   make([]*browsable.Item, 0, len(r.Items)),
	}

	for _, wi := range r.Items {
		item := browsable.NewItem(wi.Name, browsable.ChildKind(wi.Children))
		item.Icon = wi.Icon
		item.Title = wi.Title
		for _, a := range wi.Attrs {
			item.SetAttr(a.Key, a.Value)
		}
		out.Items = append(out.Items, item)
	}

	return out
}

// Codec encodes and decodes replies.
type Codec interface {
	ContentType() string
	Encode(w io.Writer, r *browsable.Reply) error
	Decode(rd io.Reader) (*browsable.Reply, error)
}

// JSON is the JSON codec.
type JSON struct {
	// Indent pretty-prints the output
	Indent bool
}

func (JSON) ContentType() string {
	return ContentTypeJSON
}

func (c JSON) Encode(w io.Writer, r *browsable.Reply) error {
	enc := json.NewEncoder(w)
	if c.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(FromReply(r)); err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	return nil
}

func (JSON) Decode(rd io.Reader) (*browsable.Reply, error) {
	var wr Reply
	if err := json.NewDecoder(rd).Decode(&wr); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return wr.ToReply(), nil
}

// XDR is the XDR codec.
type XDR struct{}

func (XDR) ContentType() string {
	return ContentTypeXDR
}

func (XDR) Encode(w io.Writer, r *browsable.Reply) error {
	if _, err := xdr.Marshal(w, FromReply(r)); err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	return nil
}

func (XDR) Decode(rd io.Reader) (*browsable.Reply, error) {
	var wr Reply
	if _, err := xdr.Unmarshal(rd, &wr); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return wr.ToReply(), nil
}

// Negotiate picks a codec from an Accept header. JSON is the default.
func Negotiate(accept string) Codec {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case ContentTypeXDR:
			return XDR{}
		case ContentTypeJSON:
			return JSON{}
		}
	}
	return JSON{}
}
