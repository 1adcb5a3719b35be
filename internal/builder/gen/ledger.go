package gen

import "iter"

// Ledger records which object file belongs to which source during one synthesis run.
// Current and freshly compiled sources are both recorded since both are linked.
type Ledger struct {
	sources []string
	objects []string
}

// Record appends a (source, object) pair
func (l *Ledger) Record(src, obj string) {
	l.sources = append(l.sources, src)
	l.objects = append(l.objects, obj)
}

// Len returns the number of recorded objects
func (l *Ledger) Len() int { return len(l.objects) }

// Objects returns the recorded objects in record order
func (l *Ledger) Objects() []string {
	objs := make([]string, len(l.objects))
	copy(objs, l.objects)
	return objs
}

// Sources returns the recorded sources in record order
func (l *Ledger) Sources() []string {
	srcs := make([]string, len(l.sources))
	copy(srcs, l.sources)
	return srcs
}

// All iterates over the (source, object) pairs in record order
func (l *Ledger) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for i := range l.objects {
			if !yield(l.sources[i], l.objects[i]) {
				return
			}
		}
	}
}
