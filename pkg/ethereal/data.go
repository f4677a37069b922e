package ethereal

// Preblock is a set of Data from units contained in one timing round
// together with some RandomBytes.
type Preblock struct {
	Data        []Data
	RandomBytes []byte
}

// NewPreblock constructs a preblock from given data and random bytes.
func NewPreblock(data []Data, randomBytes []byte) *Preblock {
	return &Preblock{data, randomBytes}
}

// PreblockSink is a channel-like callback consuming preblocks in order.
type PreblockSink func(*Preblock)

// UnitSink consumes units created by this process, e.g. to broadcast them.
type UnitSink func(Unit)

// ToPreblock produces a preblock from a slice of units containing a timing round.
// It assumes the timing unit is the last unit in the slice. The random bytes of the
// preblock are a digest of the hashes of all the units in the round, in order, so
// agreement on the round implies agreement on the bytes.
func ToPreblock(round []Unit) *Preblock {
	data := make([]Data, 0, len(round))
	for _, u := range round {
		data = append(data, u.Data())
	}
	var randomBytes Hash
	Shake128.Sum(&randomBytes, flattenHashes(round))
	return NewPreblock(data, randomBytes[:])
}

func flattenHashes(units []Unit) []byte {
	result := make([]byte, 0, len(units)*HashLength)
	for _, u := range units {
		result = append(result, u.Hash()[:]...)
	}
	return result
}

// DagInfo contains information about heights of the most recent units in a dag.
type DagInfo struct {
	Epoch   EpochID
	Heights []int
}

// MaxView returns the current DagInfo for the given dag.
func MaxView(dag Dag) *DagInfo {
	maxes := dag.MaximalUnitsPerProcess()
	heights := make([]int, 0, dag.NProc())
	maxes.Iterate(func(units []Unit) bool {
		h := -1
		for _, u := range units {
			if u.Height() > h {
				h = u.Height()
			}
		}
		heights = append(heights, h)
		return true
	})
	return &DagInfo{
		Epoch:   dag.EpochID(),
		Heights: heights,
	}
}
