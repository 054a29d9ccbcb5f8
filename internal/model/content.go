package model

import (
	"fmt"
	"maps"
)

// ContentKind tags the payload attached to a question stem.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
	ContentTable ContentKind = "table"
	ContentChart ContentKind = "chart"
)

// Content is a tagged variant: Kind selects which one of the payload fields is set.
// It is resolved once when the pool is read, never re-sniffed downstream.
type Content struct {
	Kind     ContentKind    `json:"kind"`
	Text     string         `json:"text,omitempty"`
	ImageURL string         `json:"image_url,omitempty"`
	Alt      string         `json:"alt,omitempty"`
	Rows     [][]string     `json:"rows,omitempty"`
	Chart    map[string]any `json:"chart,omitempty"`
}

// Validate enforces that exactly the payload for Kind is present.
func (c *Content) Validate() error {
	set := map[ContentKind]bool{
		ContentText:  c.Text != "",
		ContentImage: c.ImageURL != "",
		ContentTable: len(c.Rows) > 0,
		ContentChart: len(c.Chart) > 0,
	}
	filled, ok := set[c.Kind]
	if !ok {
		return fmt.Errorf("unknown content kind %q", c.Kind)
	}
	if !filled {
		return fmt.Errorf("content kind %q has no payload", c.Kind)
	}
	for kind, has := range set {
		if kind != c.Kind && has {
			return fmt.Errorf("content kind %q also carries %q payload", c.Kind, kind)
		}
	}
	return nil
}

func (c Content) Clone() Content {
	out := c
	if c.Rows != nil {
		out.Rows = make([][]string, len(c.Rows))
		for i, row := range c.Rows {
			out.Rows[i] = append([]string(nil), row...)
		}
	}
	if c.Chart != nil {
		out.Chart = maps.Clone(c.Chart)
	}
	return out
}
