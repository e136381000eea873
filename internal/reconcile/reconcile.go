// Package reconcile merges content into title-keyed lists and removes it again.
//
// A list holds at most one entry per title. Adding an item whose title is
// already present either merges it into that entry or is rejected; removing
// an item subtracts it from the entry and drops the entry once empty.
package reconcile

import (
	"fmt"
	"slices"

	"github.com/vmunix/swiper/internal/content"
)

// Method selects the reconciliation operation.
type Method string

const (
	MethodAdd    Method = "add"
	MethodRemove Method = "remove"
)

// Apply runs method against list. On success it returns the new list; the
// caller persists it. On rejection it returns a *Rejection and the input list
// is left unchanged.
func Apply(list []content.Content, method Method, item content.Content) ([]content.Content, error) {
	switch method {
	case MethodAdd:
		return Add(list, item)
	case MethodRemove:
		return Remove(list, item)
	default:
		return nil, fmt.Errorf("unknown reconcile method %q", method)
	}
}

func find(list []content.Content, title string) int {
	return slices.IndexFunc(list, func(c content.Content) bool { return c.Title() == title })
}

// Add merges item into list.
func Add(list []content.Content, item content.Content) ([]content.Content, error) {
	if c, ok := item.(*content.Collection); ok && c.IsEmpty() {
		return nil, reject(ErrNoEpisodes, item, nil)
	}

	i := find(list, item.Title())
	if i < 0 {
		return append(slices.Clone(list), item.Clone()), nil
	}
	existing := list[i]

	merged, err := merge(existing, item)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(list)
	out[i] = merged
	return out, nil
}

// merge combines a same-titled existing entry with item, returning the
// replacement entry. Neither argument is modified.
func merge(existing, item content.Content) (content.Content, error) {
	switch e := existing.(type) {
	case *content.Movie:
		if e.Equal(item) {
			return nil, reject(ErrAlreadyPresent, item, existing)
		}
		return nil, reject(ErrTitleConflict, item, existing)

	case *content.Episode:
		switch in := item.(type) {
		case *content.Episode:
			if e.Equal(in) {
				return nil, reject(ErrAlreadyPresent, item, existing)
			}
			initial, season := promotedProvenance(e, in)
			c := content.NewCollection(e.Title(), []*content.Episode{e, in}, initial, season)
			c.SetOwner(e.Owner())
			return c, nil
		case *content.Collection:
			if in.Len() == 1 && in.ContainsAll(e) {
				return nil, reject(ErrAlreadyPresent, item, existing)
			}
			c := in.Clone().(*content.Collection)
			c.Add(e)
			c.SetOwner(e.Owner())
			return c, nil
		default:
			return nil, reject(ErrTitleConflict, item, existing)
		}

	case *content.Collection:
		if item.Kind() == content.KindMovie {
			return nil, reject(ErrTitleConflict, item, existing)
		}
		if e.ContainsAll(item) {
			return nil, reject(ErrAlreadyPresent, item, existing)
		}
		c := e.Clone().(*content.Collection)
		switch in := item.(type) {
		case *content.Episode:
			c.Add(in)
		case *content.Collection:
			c.Add(in.Episodes()...)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unexpected content %T", existing)
}

// promotedProvenance picks the provenance of a collection built from two
// episodes: a season when they share one, the series otherwise.
func promotedProvenance(a, b *content.Episode) (string, int) {
	if a.Season() == b.Season() {
		return content.InitialSeason, a.Season()
	}
	return content.InitialSeries, 0
}

// Remove subtracts item from list.
func Remove(list []content.Content, item content.Content) ([]content.Content, error) {
	i := find(list, item.Title())
	if i < 0 {
		return nil, reject(ErrNotPresent, item, nil)
	}
	existing := list[i]

	switch e := existing.(type) {
	case *content.Movie, *content.Episode:
		if !existing.Equal(item) && !containedIn(item, existing) {
			return nil, reject(ErrNotPresent, item, existing)
		}
		return slices.Delete(slices.Clone(list), i, i+1), nil

	case *content.Collection:
		if !e.ContainsAny(item) {
			return nil, reject(ErrNotPresent, item, existing)
		}
		c := e.Clone().(*content.Collection)
		c.Remove(item)
		out := slices.Clone(list)
		if c.IsEmpty() {
			return slices.Delete(out, i, i+1), nil
		}
		out[i] = c
		return out, nil
	}
	return nil, fmt.Errorf("unexpected content %T", existing)
}

// containedIn reports whether an episode entry is part of an incoming collection.
func containedIn(item, existing content.Content) bool {
	c, ok := item.(*content.Collection)
	return ok && existing.Kind() == content.KindEpisode && c.ContainsAny(existing)
}
