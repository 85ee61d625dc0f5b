package dispatch

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	}
	return 1
}

func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

type Type string

const (
	TypeDelegation Type = "delegation"
	TypeResponse   Type = "response"
	TypeEnter      Type = "enter"
	TypeExit       Type = "exit"
	TypeMeeting    Type = "meeting"
	TypeReturn     Type = "return"
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeDelegation, nil
	case TypeDelegation, TypeResponse, TypeEnter, TypeExit, TypeMeeting, TypeReturn:
		return t, nil
	}
	return "", fmt.Errorf("unknown interaction type %q", s)
}

// Request is one queued movement.
type Request struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      Type      `json:"type"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Priority  Priority  `json:"priority"`
	AddedAt   time.Time `json:"addedAt"`

	seq uint64
}

// Interaction is an upstream event before it becomes a Request.
type Interaction struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Priority  string    `json:"priority"`
}

// less orders by priority rank, then timestamp, then insertion.
func less(a, b *Request) bool {
	if ra, rb := a.Priority.rank(), b.Priority.rank(); ra != rb {
		return ra < rb
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.seq < b.seq
}

type queue []*Request

func (q queue) Len() int           { return len(q) }
func (q queue) Less(i, j int) bool { return less(q[i], q[j]) }
func (q queue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)        { *q = append(*q, x.(*Request)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}

func (q *queue) push(r *Request) { heap.Push(q, r) }
func (q *queue) pop() *Request   { return heap.Pop(q).(*Request) }

// sorted returns the pending requests in dispatch order.
func (q queue) sorted() []Request {
	tmp := make([]*Request, len(q))
	copy(tmp, q)
	sort.Slice(tmp, func(i, j int) bool { return less(tmp[i], tmp[j]) })
	out := make([]Request, len(tmp))
	for i, r := range tmp {
		out[i] = *r
	}
	return out
}
