package pygo

import "runtime"

// Iterator steps through a foreign iterable. It is lazy, finite,
// forward-only and not restartable: once Next reports false the
// iterator stays exhausted. Usage follows the scanner pattern:
//
//	it, err := obj.Iter()
//	for it.Next() {
//	    use(it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	py   *Python
	it   *ref
	cur  *Obj
	err  error
	done bool
}

// Iter obtains a foreign iterator for the object.
func (o *Obj) Iter() (*Iterator, error) {
	h := o.py.tab.GetIter(o.handle())
	runtime.KeepAlive(o)
	if h == 0 {
		return nil, o.py.failed()
	}
	return &Iterator{py: o.py, it: o.py.newRef(h, false)}, nil
}

// Next advances the iterator. It returns false at the end of the
// sequence and on error; the two are told apart by Err. End of
// iteration is detected by a fetch that yields no value with the
// foreign error indicator clear.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	h := it.py.tab.IterNext(it.it.h)
	runtime.KeepAlive(it.it)
	if h == 0 {
		it.done = true
		it.cur = nil
		it.err = it.py.errCheck()
		return false
	}
	it.cur = it.py.Receive(h)
	return true
}

// Value returns the element fetched by the last successful Next.
func (it *Iterator) Value() *Obj {
	return it.cur
}

// Err returns the translated error that stopped iteration, or nil if
// the iterator simply ran out of elements.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the foreign iterator early. Optional; the collector
// reclaims it otherwise.
func (it *Iterator) Close() error {
	it.done = true
	it.cur = nil
	it.it.release()
	return nil
}
