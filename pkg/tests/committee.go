package tests

import (
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/crypto/tss"
	"github.com/ChiralBehaviors/apollo/pkg/encoding"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/orderer"
)

// Committee wires nProc in-process orderers together: every unit created by one
// of them is serialised and delivered to all the others, mimicking a reliable
// broadcast with no network underneath.
type Committee struct {
	Orderers []*orderer.Orderer
	inboxes  []chan delivery
	mx       sync.Mutex
	blocks   [][]*ethereal.Preblock
	wg       sync.WaitGroup
}

type delivery struct {
	source uint16
	pu     ethereal.Preunit
}

// CommitteeConfigs returns a slice of default configurations for a committee of
// the given size, all sharing freshly dealt threshold keys.
func CommitteeConfigs(nProc uint16, numberOfEpochs, epochLength int, randSource io.Reader) ([]config.Config, error) {
	wtks, err := tss.GenerateKeys(nProc, ethereal.MinimalQuorum(nProc), randSource)
	if err != nil {
		return nil, err
	}
	configs := make([]config.Config, nProc)
	for pid := uint16(0); pid < nProc; pid++ {
		cnf := config.NewWithKey(pid, nProc, wtks[pid])
		cnf.NumberOfEpochs = numberOfEpochs
		cnf.EpochLength = epochLength
		configs[pid] = cnf
	}
	return configs, nil
}

// NewCommittee constructs the orderers for the given configurations and data sources.
func NewCommittee(configs []config.Config, dataSources []ethereal.DataSource) (*Committee, error) {
	nProc := len(configs)
	c := &Committee{
		Orderers: make([]*orderer.Orderer, nProc),
		inboxes:  make([]chan delivery, nProc),
		blocks:   make([][]*ethereal.Preblock, nProc),
	}
	for i := range c.inboxes {
		c.inboxes[i] = make(chan delivery, 64*nProc)
	}
	for pid := range configs {
		pid := pid
		preblockSink := func(pb *ethereal.Preblock) {
			c.mx.Lock()
			defer c.mx.Unlock()
			c.blocks[pid] = append(c.blocks[pid], pb)
		}
		unitSink := func(u ethereal.Unit) {
			encoded, err := encoding.EncodeUnit(u)
			if err != nil {
				return
			}
			for other := range configs {
				if other == pid {
					continue
				}
				pu, err := encoding.DecodePreunit(encoded, configs[other].DigestAlgorithm)
				if err != nil {
					return
				}
				c.inboxes[other] <- delivery{uint16(pid), pu}
			}
		}
		ord, err := orderer.New(configs[pid], dataSources[pid], preblockSink, unitSink, zerolog.Nop())
		if err != nil {
			return nil, err
		}
		c.Orderers[pid] = ord
	}
	return c, nil
}

// Start all the orderers and the delivery workers.
func (c *Committee) Start() {
	for _, ord := range c.Orderers {
		ord.Start()
	}
	for pid := range c.Orderers {
		pid := pid
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for d := range c.inboxes[pid] {
				c.Orderers[pid].AddPreunits(d.source, d.pu)
			}
		}()
	}
}

// Stop the orderers and the delivery workers. The orderers stop first, so that no
// unit sink tries to deliver to a closed inbox.
func (c *Committee) Stop() {
	for _, ord := range c.Orderers {
		ord.Stop()
	}
	for _, inbox := range c.inboxes {
		close(inbox)
	}
	c.wg.Wait()
}

// Preblocks returns a snapshot of the preblocks emitted so far, indexed by process.
func (c *Committee) Preblocks() [][]*ethereal.Preblock {
	c.mx.Lock()
	defer c.mx.Unlock()
	result := make([][]*ethereal.Preblock, len(c.blocks))
	for i, blocks := range c.blocks {
		result[i] = append([]*ethereal.Preblock(nil), blocks...)
	}
	return result
}
