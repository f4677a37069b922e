package adder

// missingPreunit is a preunit we know about only through the crowns of other preunits.
type missingPreunit struct {
	neededBy []*waitingPreunit // waitingPreunits that have this preunit as a parent
}

// registerMissing records that the given waitingPreunit needs an unknown unit with the given id.
func (ad *adder) registerMissing(id uint64, wp *waitingPreunit) {
	mp, ok := ad.missing[id]
	if !ok {
		mp = &missingPreunit{neededBy: make([]*waitingPreunit, 0, 8)}
		ad.missing[id] = mp
	}
	mp.neededBy = append(mp.neededBy, wp)
}
