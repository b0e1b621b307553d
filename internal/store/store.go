// Package store holds the application state that the views render.
//
// State only changes through Dispatch, which runs the pure Reduce function and publishes the
// resulting snapshot. Snapshots are never mutated after they are published.
package store

import (
	"sync"

	"restaurant_live/internal/model"
)

// State: one immutable snapshot.
type State struct {
	Restaurants []model.Restaurant
	Draft       model.Restaurant
}

type ActionType string

const (
	ActionQuery        ActionType = "QUERY"
	ActionSubscription ActionType = "SUBSCRIPTION"
	ActionSetFormData  ActionType = "SET_FORM_DATA"
	ActionRemove       ActionType = "REMOVE"
)

// Action: one command for Reduce. Only the payload matching Type is read.
type Action struct {
	Type        ActionType
	Restaurants []model.Restaurant
	Restaurant  model.Restaurant
	Fields      map[model.Field]string
	ID          string
}

// Reduce: applies action to state and returns the next state. It never fails and never mutates
// the slices held by state.
func Reduce(state State, action Action) State {
	switch action.Type {
	case ActionQuery:
		restaurants := make([]model.Restaurant, len(action.Restaurants))
		copy(restaurants, action.Restaurants)
		state.Restaurants = restaurants
	case ActionSubscription:
		restaurants := make([]model.Restaurant, len(state.Restaurants), len(state.Restaurants)+1)
		copy(restaurants, state.Restaurants)
		state.Restaurants = append(restaurants, action.Restaurant)
	case ActionSetFormData:
		draft := state.Draft
		for field, value := range action.Fields {
			draft = draft.With(field, value)
		}
		state.Draft = draft
	case ActionRemove:
		restaurants := make([]model.Restaurant, 0, len(state.Restaurants))
		for _, r := range state.Restaurants {
			if r.ID != action.ID {
				restaurants = append(restaurants, r)
			}
		}
		state.Restaurants = restaurants
	}
	return state
}

// Listener: observes every published snapshot.
type Listener func(State)

// Store: owns the current State.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
}

func New() *Store {
	return &Store{
		state:     State{Restaurants: []model.Restaurant{}},
		listeners: make(map[int]Listener),
	}
}

// Dispatch: reduces action into the current state and notifies listeners in dispatch order.
// Listeners run while the store is locked: they must not block and must not call Dispatch.
func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reduce(s.state, action)
	for _, l := range s.listeners {
		l(s.state)
	}
	return s.state
}

// ReplaceAll: discards the current sequence and installs restaurants verbatim.
func (s *Store) ReplaceAll(restaurants []model.Restaurant) State {
	return s.Dispatch(Action{Type: ActionQuery, Restaurants: restaurants})
}

// Append: adds r at the end of the sequence. Duplicated ids are kept.
func (s *Store) Append(r model.Restaurant) State {
	return s.Dispatch(Action{Type: ActionSubscription, Restaurant: r})
}

// MergeDraft: sets the given draft fields, leaving the others untouched.
func (s *Store) MergeDraft(fields map[model.Field]string) State {
	return s.Dispatch(Action{Type: ActionSetFormData, Fields: fields})
}

// Remove: drops every restaurant with the given id.
func (s *Store) Remove(id string) State {
	return s.Dispatch(Action{Type: ActionRemove, ID: id})
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Contains: reports whether a restaurant with id is visible.
func (s State) Contains(id string) bool {
	for _, r := range s.Restaurants {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Subscribe: registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
