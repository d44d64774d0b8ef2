package metabolic

// bounds is a recorded (lower, upper) pair.
type bounds struct {
	lb, ub float64
}

// Transaction scopes a set of model mutations so they can be rolled back
// unconditionally: the prior bounds of every touched reaction are recorded
// on first touch, and Close restores them together with any reactions,
// variables and constraints added inside the transaction.  Evaluators run
// every candidate inside one and defer Close, so bound leakage between
// candidates is impossible even on error paths.
//
// A Transaction is not safe for concurrent use; evaluate candidates
// sequentially or clone the model per worker.
type Transaction struct {
	model   *Model
	program *ConstraintProgram

	prior          map[string]bounds
	addedReactions []string
	addedVars      []ArenaKey
	addedCons      []ArenaKey
	closed         bool
}

// Begin opens a transaction over a model and its constraint program.
// program may be nil when no manipulation needs auxiliary constraints.
func Begin(model *Model, program *ConstraintProgram) *Transaction {
	return &Transaction{
		model:   model,
		program: program,
		prior:   map[string]bounds{},
	}
}

// Model returns the transacted model.
func (tx *Transaction) Model() *Model { return tx.model }

// Program returns the transacted constraint program, or nil.
func (tx *Transaction) Program() *ConstraintProgram { return tx.program }

// touch records a reaction's bounds the first time it is modified.
func (tx *Transaction) touch(r *Reaction) {
	if _, ok := tx.prior[r.ID]; !ok {
		tx.prior[r.ID] = bounds{lb: r.LowerBound, ub: r.UpperBound}
	}
}

// SetBounds replaces both bounds of a reaction.
func (tx *Transaction) SetBounds(r *Reaction, lb, ub float64) {
	tx.touch(r)
	r.LowerBound = lb
	r.UpperBound = ub
}

// SetLowerBound and SetUpperBound replace one bound.
func (tx *Transaction) SetLowerBound(r *Reaction, lb float64) {
	tx.touch(r)
	r.LowerBound = lb
}

func (tx *Transaction) SetUpperBound(r *Reaction, ub float64) {
	tx.touch(r)
	r.UpperBound = ub
}

// AddReaction adds a reaction that will be removed on Close.
func (tx *Transaction) AddReaction(r *Reaction) error {
	if err := tx.model.AddReaction(r); err != nil {
		return err
	}
	tx.addedReactions = append(tx.addedReactions, r.ID)
	return nil
}

// AddVariable and AddConstraint attach program entries that will be removed
// on Close.  EnsureVariable-style reuse of an entry added by an earlier
// manipulation in the same transaction goes through the program directly
// and is rolled back by whichever call added it.
func (tx *Transaction) AddVariable(v *Variable) error {
	if err := tx.program.AddVariable(v); err != nil {
		return err
	}
	tx.addedVars = append(tx.addedVars, v.Key)
	return nil
}

func (tx *Transaction) AddConstraint(c *Constraint) error {
	if err := tx.program.AddConstraint(c); err != nil {
		return err
	}
	tx.addedCons = append(tx.addedCons, c.Key)
	return nil
}

// Close rolls every recorded mutation back, in reverse order of addition.
// Close is idempotent and never fails, so it is safe to defer
// unconditionally.
func (tx *Transaction) Close() {
	if tx.closed {
		return
	}
	tx.closed = true

	for i := len(tx.addedCons) - 1; i >= 0; i-- {
		tx.program.RemoveConstraint(tx.addedCons[i])
	}
	for i := len(tx.addedVars) - 1; i >= 0; i-- {
		tx.program.RemoveVariable(tx.addedVars[i])
	}
	for i := len(tx.addedReactions) - 1; i >= 0; i-- {
		tx.model.RemoveReaction(tx.addedReactions[i])
	}
	for id, b := range tx.prior {
		if r, ok := tx.model.Reaction(id); ok {
			r.LowerBound = b.lb
			r.UpperBound = b.ub
		}
	}
}
