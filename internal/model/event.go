package model

// EventType tags a change Event.
type EventType string

const (
	EventAdded         EventType = "added"
	EventRemoved       EventType = "removed"
	EventUpdated       EventType = "updated"
	EventFilterChanged EventType = "filterChanged"
	EventLengthChanged EventType = "lengthChanged"
	EventCompleted     EventType = "completed"
)

// Event is published on the store's bus. Only the fields that belong to
// Type are meaningful:
//
//	added, removed, updated  Todo
//	filterChanged            Filter
//	lengthChanged            CountTodos
//	completed                CountCompleted
type Event struct {
	Type           EventType
	Todo           Todo
	Filter         Filter
	CountTodos     int
	CountCompleted int
}

// Is returns a predicate matching events of type t.
func Is(t EventType) func(Event) bool {
	return func(e Event) bool { return e.Type == t }
}

// TodoOf projects the record carried by e.
func TodoOf(e Event) Todo { return e.Todo }
