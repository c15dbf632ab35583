// Package route maps hash fragments to list filters.
package route

import "github.com/Makepad-fr/tada/internal/model"

// Filterer is the part of the todo store that routing drives.
type Filterer interface {
	ShowAll()
	ShowIncomplete()
	ShowCompleted()
}

var routes = map[string]model.Filter{
	"#/":          model.FilterAll,
	"#/active":    model.FilterIncomplete,
	"#/completed": model.FilterCompleted,
}

// Parse returns the filter for hash.
func Parse(hash string) (model.Filter, bool) {
	f, ok := routes[hash]
	return f, ok
}

// Href is the inverse of Parse.
func Href(f model.Filter) string {
	switch f {
	case model.FilterIncomplete:
		return "#/active"
	case model.FilterCompleted:
		return "#/completed"
	}
	return "#/"
}

// Dispatch applies the filter named by hash. Unknown fragments are ignored
// and reported as false.
func Dispatch(s Filterer, hash string) bool {
	f, ok := Parse(hash)
	if !ok {
		return false
	}
	switch f {
	case model.FilterIncomplete:
		s.ShowIncomplete()
	case model.FilterCompleted:
		s.ShowCompleted()
	default:
		s.ShowAll()
	}
	return true
}
