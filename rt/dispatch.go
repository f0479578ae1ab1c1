package rt

// ---------------------------------------------------------------------------
// Message dispatch
// ---------------------------------------------------------------------------
//
// Send resolves (class, selector) to an implementation and invokes it:
//
//  1. nil receiver          -> nil result, no error
//  2. per-class cache       -> hit: invoke
//  3. local method table    -> hit: fill cache, invoke
//  4. superclass chain      -> hit: fill cache at the originating class
//  5. forwarding pipeline   -> redirect / reified invocation
//  6. exhausted             -> does-not-recognize error
//
// Resolution order is identical whether the cache is cold or warm: a
// class's own methods, including the newest category install, always
// shadow inherited implementations.

// Send delivers a message. The results mirror the method's type encoding:
// ok is false for void methods, true when ret carries a word-encoded value.
// A nil receiver absorbs the send and returns (0, false, nil).
func Send(receiver *Object, sel *Selector, args []Word) (ret Word, ok bool, err error) {
	return sendDepth(receiver, sel, args, 0)
}

// SendByName interns the selector and delivers the message. Convenience
// surface for embedders; hot paths should intern once and use Send.
func SendByName(receiver *Object, selector string, args []Word) (Word, bool, error) {
	return sendDepth(receiver, Intern(selector), args, 0)
}

// sendDepth is the full send path with the forwarding depth threaded
// through, so redirect chains are bounded without thread-local state.
func sendDepth(receiver *Object, sel *Selector, args []Word, depth int) (Word, bool, error) {
	if receiver == nil {
		return 0, false, nil
	}
	m := receiver.class.resolve(sel)
	if m == nil {
		return forward(receiver, sel, args, depth)
	}
	if len(args) != m.numArgs {
		return 0, false, &ArgumentCountError{
			Selector: sel.Name(),
			Expected: m.numArgs,
			Got:      len(args),
		}
	}
	ret, ok := m.invoke(receiver, args)
	return ret, ok, nil
}
