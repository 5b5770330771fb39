package acp

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCorrelationTableInsertTake(t *testing.T) {
	tbl := newCorrelationTable()
	s := newSlot()
	tbl.insert("1", s)

	got := tbl.take("1")
	require.Same(t, s, got)

	// a second take of the same key finds nothing: insert/take is one-shot.
	require.Nil(t, tbl.take("1"))
}

func TestCorrelationTableTakeUnknown(t *testing.T) {
	tbl := newCorrelationTable()
	require.Nil(t, tbl.take("missing"))
}

func TestCorrelationTableDrainAll(t *testing.T) {
	tbl := newCorrelationTable()
	s1, s2 := newSlot(), newSlot()
	tbl.insert("1", s1)
	tbl.insert("2", s2)

	tbl.drainAll(errors.New("peer disconnected"))

	r1 := <-s1.ch
	require.NotNil(t, r1.err)
	r2 := <-s2.ch
	require.NotNil(t, r2.err)

	// the table itself is empty afterward.
	require.Nil(t, tbl.take("1"))
	require.Nil(t, tbl.take("2"))
}

func TestCorrelationTableConcurrentAccess(t *testing.T) {
	tbl := newCorrelationTable()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			s := newSlot()
			tbl.insert(key, s)
			tbl.take(key)
		}(i)
	}
	wg.Wait()
}
