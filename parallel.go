/*
Copyright © 2024 the lasrc authors.
This file is part of lasrc.

lasrc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

lasrc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with lasrc.  If not, see <http://www.gnu.org/licenses/>.
*/

package lasrc

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// parallelFor runs f for every index in [0, n) across a pool of
// worker goroutines, one per available processor, with each worker
// taking a strided share of the indices. Every unit of work runs to
// completion; the first error stops the remaining work and is
// returned after all workers have exited.
func parallelFor(n int, f func(i int) error) error {
	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > n {
		nprocs = n
	}
	if nprocs <= 1 {
		for i := 0; i < n; i++ {
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		mx       sync.Mutex
		firstErr error
		failed   int32
	)
	wg.Add(nprocs)
	for p := 0; p < nprocs; p++ {
		go func(p int) {
			defer wg.Done()
			for i := p; i < n; i += nprocs {
				if atomic.LoadInt32(&failed) != 0 {
					return
				}
				if err := f(i); err != nil {
					mx.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mx.Unlock()
					atomic.StoreInt32(&failed, 1)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	return firstErr
}
