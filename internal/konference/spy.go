package konference

// spyTable records spyer/spyee pairings by member id. A member is in at
// most one pairing and every pairing is stored in both directions.
type spyTable struct {
	spyeeOf map[int]int
	spyerOf map[int]int
}

func newSpyTable() spyTable {
	return spyTable{
		spyeeOf: make(map[int]int),
		spyerOf: make(map[int]int),
	}
}

// pair makes spyer observe spyee. It fails if either side is already paired.
func (t *spyTable) pair(spyer, spyee int) bool {
	if spyer == spyee || t.paired(spyer) || t.paired(spyee) {
		return false
	}
	t.spyeeOf[spyer] = spyee
	t.spyerOf[spyee] = spyer
	return true
}

// unpair removes the pairing of id, reporting the partner and whether id
// was the spyer.
func (t *spyTable) unpair(id int) (partner int, wasSpyer bool, ok bool) {
	if spyee, found := t.spyeeOf[id]; found {
		delete(t.spyeeOf, id)
		delete(t.spyerOf, spyee)
		return spyee, true, true
	}
	if spyer, found := t.spyerOf[id]; found {
		delete(t.spyerOf, id)
		delete(t.spyeeOf, spyer)
		return spyer, false, true
	}
	return 0, false, false
}

func (t *spyTable) partner(id int) (int, bool) {
	if p, ok := t.spyeeOf[id]; ok {
		return p, true
	}
	p, ok := t.spyerOf[id]
	return p, ok
}

func (t *spyTable) paired(id int) bool {
	_, ok := t.partner(id)
	return ok
}

func (t *spyTable) isSpyer(id int) bool {
	_, ok := t.spyeeOf[id]
	return ok
}

func (t *spyTable) len() int {
	return len(t.spyeeOf)
}
