package model

// Todo is the domain model for a todo entry. Values are replaced, never
// mutated, once they are in a collection.
type Todo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// WithTitle returns a copy of t carrying title.
func (t Todo) WithTitle(title string) Todo {
	t.Title = title
	return t
}

// WithCompleted returns a copy of t with the completed flag set to done.
func (t Todo) WithCompleted(done bool) Todo {
	t.Completed = done
	return t
}

// Filter selects which todos a view shows.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterIncomplete Filter = "incomplete"
	FilterCompleted  Filter = "completed"
)

// Match reports whether t is visible under f. Unknown filters match all.
func (f Filter) Match(t Todo) bool {
	switch f {
	case FilterIncomplete:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// Valid reports whether f is one of the known filters.
func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterIncomplete, FilterCompleted:
		return true
	}
	return false
}
