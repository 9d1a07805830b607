// Package domain defines the core types of the practice session engine:
// sessions, turns, corrections, aggregates, and reviews.
package domain

import "time"

// SessionState is the lifecycle phase of a practice session.
// States advance strictly forward: selection → active → reviewing → terminal.
type SessionState string

const (
	StateSelection SessionState = "selection"
	StateActive    SessionState = "active"
	StateReviewing SessionState = "reviewing"
	StateTerminal  SessionState = "terminal"
)

// stateRank orders states for monotonicity checks.
var stateRank = map[SessionState]int{
	StateSelection: 0,
	StateActive:    1,
	StateReviewing: 2,
	StateTerminal:  3,
}

// CanAdvanceTo reports whether next is the immediate successor of s.
// The lifecycle is linear: no cycles, no skipping.
func (s SessionState) CanAdvanceTo(next SessionState) bool {
	cur, ok := stateRank[s]
	if !ok {
		return false
	}
	nxt, ok := stateRank[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// Level is a CEFR-style proficiency tier constraining the register and
// vocabulary of generated counterpart replies.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Levels lists all proficiency levels in ascending order.
var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// Valid reports whether l is one of the six known levels.
func (l Level) Valid() bool {
	for _, known := range Levels {
		if l == known {
			return true
		}
	}
	return false
}

// Session is one bounded practice conversation, from role selection to
// final review.
type Session struct {
	ID              string         `json:"id"`
	State           SessionState   `json:"state"`
	SourceID        string         `json:"sourceId"`
	CounterpartRole string         `json:"counterpartRole"`
	LearnerRole     string         `json:"learnerRole"`
	Level           Level          `json:"proficiencyLevel"`
	TargetLanguage  string         `json:"targetLanguage"`
	Turns           []Turn         `json:"turns,omitempty"`
	Aggregate       ErrorAggregate `json:"aggregate"`
	Review          *Review        `json:"review,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}
