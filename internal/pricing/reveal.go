package pricing

// CardState is the reveal state of a single card.
type CardState string

const (
	CardPending   CardState = "pending"
	CardRevealing CardState = "revealing"
	CardRevealed  CardState = "revealed"
)

// RevealSequence reveals cards one after another. Each Advance moves the
// revealing card to revealed and starts the next pending one.
type RevealSequence struct {
	states []CardState
	cursor int
}

func NewRevealSequence(n int) *RevealSequence {
	if n < 0 {
		n = 0
	}
	states := make([]CardState, n)
	for i := range states {
		states[i] = CardPending
	}
	return &RevealSequence{states: states, cursor: -1}
}

// Advance performs one transition and reports whether anything changed.
func (r *RevealSequence) Advance() bool {
	if r.Done() {
		return false
	}
	if r.cursor >= 0 {
		r.states[r.cursor] = CardRevealed
	}
	r.cursor++
	if r.cursor < len(r.states) {
		r.states[r.cursor] = CardRevealing
	}
	return true
}

// Done reports whether every card is revealed.
func (r *RevealSequence) Done() bool {
	return r.cursor >= len(r.states)
}

// States returns a copy of the per-card states.
func (r *RevealSequence) States() []CardState {
	return append([]CardState(nil), r.states...)
}

// Order runs a fresh sequence of n cards to completion and returns the index
// of the card that starts revealing at each step.
func Order(n int) []int {
	seq := NewRevealSequence(n)
	order := make([]int, 0, n)
	for seq.Advance() {
		if seq.cursor < n {
			order = append(order, seq.cursor)
		}
	}
	return order
}
