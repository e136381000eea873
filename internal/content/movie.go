package content

import (
	"fmt"
	"strconv"
)

// Movie is identified by title and year.
type Movie struct {
	video
	title string
	year  int
}

// NewMovie creates a movie owned by no session.
func NewMovie(title string, year int) *Movie {
	return &Movie{title: title, year: year}
}

func (m *Movie) Title() string { return m.title }
func (m *Movie) Year() int     { return m.year }
func (m *Movie) Kind() Kind    { return KindMovie }
func (m *Movie) IsVideo() bool { return true }
func (m *Movie) sealed()       {}

// Desc renders "Title (Year)".
func (m *Movie) Desc() string {
	if m.year == 0 {
		return m.title
	}
	return fmt.Sprintf("%s (%d)", m.title, m.year)
}

func (m *Movie) Equal(other Content) bool {
	o, ok := other.(*Movie)
	return ok && o.title == m.title && o.year == m.year
}

func (m *Movie) ContainsAny(other Content) bool { return m.Equal(other) }
func (m *Movie) ContainsAll(other Content) bool { return m.Equal(other) }

func (m *Movie) SearchTerm() string {
	if m.year == 0 {
		return searchTitle(m.title)
	}
	return searchTitle(m.title) + " " + strconv.Itoa(m.year)
}

func (m *Movie) Clone() Content {
	c := NewMovie(m.title, m.year)
	c.owner = m.owner
	return c
}
