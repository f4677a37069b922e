// Package tests provides fixtures shared by the test suites: preloaded data
// sources, dag builders, and an in-process committee wiring.
package tests

import (
	"crypto/rand"
	"sync"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

type preloadedDataSource struct {
	mx   sync.Mutex
	data []ethereal.Data
}

// NewPreloadedDataSource returns a data source handing out the given pieces of
// data one by one, and empty data once they run out.
func NewPreloadedDataSource(data []ethereal.Data) ethereal.DataSource {
	return &preloadedDataSource{data: data}
}

func (ds *preloadedDataSource) GetData() ethereal.Data {
	ds.mx.Lock()
	defer ds.mx.Unlock()
	if len(ds.data) == 0 {
		return ethereal.Data{}
	}
	result := ds.data[0]
	ds.data = ds.data[1:]
	return result
}

// RandomData returns count pieces of random data of the given size.
func RandomData(count, size int) []ethereal.Data {
	result := make([]ethereal.Data, count)
	for i := range result {
		result[i] = make(ethereal.Data, size)
		rand.Read(result[i])
	}
	return result
}

type randomDataSource struct {
	size int
}

// NewRandomDataSource returns a data source producing random data of the given size.
func NewRandomDataSource(size int) ethereal.DataSource {
	return &randomDataSource{size}
}

func (ds *randomDataSource) GetData() ethereal.Data {
	data := make(ethereal.Data, ds.size)
	rand.Read(data)
	return data
}
