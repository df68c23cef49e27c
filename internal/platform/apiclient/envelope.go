package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Page is a list response. The API answers some collections with a bare JSON
// array and others with a paginated envelope {count, next, previous,
// results}; both decode into Items.
type Page[T any] struct {
	Items    []T
	Count    int
	Next     *string
	Previous *string
	// Enveloped records which shape was received.
	Enveloped bool
}

var errNotAList = errors.New("response is neither a list nor a paginated envelope")

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = Page[T]{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode list: %w", err)
		}
		p.Items = items
		p.Count = len(items)
		return nil
	}

	var env struct {
		Count    *int    `json:"count"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
		Results  *[]T    `json:"results"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Results == nil {
		return errNotAList
	}
	p.Items = *env.Results
	p.Count = len(p.Items)
	if env.Count != nil {
		p.Count = *env.Count
	}
	p.Next = env.Next
	p.Previous = env.Previous
	p.Enveloped = true
	return nil
}
