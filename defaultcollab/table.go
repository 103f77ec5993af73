package defaultcollab

import (
	"context"
	"math/rand/v2"

	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/internal/grimerr"
)

// TableRow is one weighted entry in a TableStore table.
type TableRow struct {
	Entry  any
	Weight int
}

// TableStore is an in-memory, weighted-roll random-table store. Tables
// is filled in by the caller; nothing in this package loads tables from
// a file.
type TableStore struct {
	Tables map[string][]TableRow
	Rand   *rand.Rand
}

func (s *TableStore) intn(n int) int {
	if s.Rand != nil {
		return s.Rand.IntN(n)
	}
	return rand.IntN(n)
}

func (s *TableStore) RollTable(ctx context.Context, name string) (host.TableEntry, error) {
	rows, ok := s.Tables[name]
	if !ok || len(rows) == 0 {
		return host.TableEntry{}, grimerr.New(grimerr.TableError, "unknown table: "+name)
	}

	total := 0
	for _, r := range rows {
		w := r.Weight
		if w <= 0 {
			w = 1
		}
		total += w
	}
	pick := s.intn(total) + 1
	running := 0
	for i, r := range rows {
		w := r.Weight
		if w <= 0 {
			w = 1
		}
		running += w
		if pick <= running {
			return host.TableEntry{
				Entry: r.Entry,
				Roll:  host.DiceRoll{Total: i + 1, Detail: name},
			}, nil
		}
	}
	// unreachable given the weight accounting above
	last := rows[len(rows)-1]
	return host.TableEntry{Entry: last.Entry, Roll: host.DiceRoll{Total: len(rows), Detail: name}}, nil
}

// Values returns the raw entries of a table, for table_from_values
// iteration.
func (s *TableStore) Values(ctx context.Context, name string) (any, error) {
	rows, ok := s.Tables[name]
	if !ok {
		return nil, grimerr.New(grimerr.TableError, "unknown table: "+name)
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r.Entry
	}
	return out, nil
}
