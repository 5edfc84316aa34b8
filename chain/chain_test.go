package chain

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/anchored"
)

func dataEntry(payload string, pred anchored.Address) (anchored.Address, *anchored.Entry) {
	e := &anchored.Entry{
		Kind:        anchored.KindData,
		Predecessor: pred,
		Payload:     []byte(payload),
	}
	return e.Address(), e
}

type observation struct {
	addr anchored.Address
	e    *anchored.Entry
}

func TestGraphLinearChain(t *testing.T) {
	a1, e1 := dataEntry("v1", anchored.Zero)
	a2, e2 := dataEntry("v2", a1)
	a3, e3 := dataEntry("v3", a2)

	obs := []observation{{a1, e1}, {a2, e2}, {a3, e3}}

	// Every delivery order must resolve identically.
	for _, perm := range permutations(len(obs)) {
		g := NewGraph()
		for _, i := range perm {
			g.Add(obs[i].addr, obs[i].e)
		}

		got := g.Tips(a1)
		want := TipSet{Addrs: []anchored.Address{a3}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("order %v: mismatch (-want +got):\n%s", perm, diff)
		}
		if base := g.Base(a3); base != a1 {
			t.Errorf("order %v: got base %s, want %s", perm, base, a1)
		}
	}
}

func TestGraphFork(t *testing.T) {
	a1, e1 := dataEntry("v1", anchored.Zero)
	a2a, e2a := dataEntry("v2a", a1)
	a2b, e2b := dataEntry("v2b", a1)

	obs := []observation{{a1, e1}, {a2a, e2a}, {a2b, e2b}}

	wantTips := []anchored.Address{a2a, a2b}
	if a2b.Less(a2a) {
		wantTips = []anchored.Address{a2b, a2a}
	}

	for _, perm := range permutations(len(obs)) {
		g := NewGraph()
		for _, i := range perm {
			g.Add(obs[i].addr, obs[i].e)
		}

		got := g.Tips(a1)
		want := TipSet{Addrs: wantTips, Fork: true}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("order %v: mismatch (-want +got):\n%s", perm, diff)
		}
	}
}

func TestGraphDuplicateDelivery(t *testing.T) {
	a1, e1 := dataEntry("v1", anchored.Zero)
	a2, e2 := dataEntry("v2", a1)

	g := NewGraph()
	g.Add(a1, e1)
	g.Add(a2, e2)
	g.Add(a2, e2)
	g.Add(a1, e1)

	got := g.Tips(a1)
	want := TipSet{Addrs: []anchored.Address{a2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGraphUnknownPredecessor(t *testing.T) {
	a1, _ := dataEntry("v1", anchored.Zero)
	a2, e2 := dataEntry("v2", a1)
	a3, e3 := dataEntry("v3", a2)

	// e1 has not replicated yet.
	g := NewGraph()
	g.Add(a3, e3)
	g.Add(a2, e2)

	// a2's predecessor is unknown, so a2 is the locally-known base.
	if base := g.Base(a3); base != a2 {
		t.Errorf("got base %s, want %s", base, a2)
	}

	got := g.Tips(a2)
	want := TipSet{Addrs: []anchored.Address{a3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// permutations returns all orderings of n indexes.
func permutations(n int) [][]int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	var (
		out [][]int
		rec func(k int)
	)
	rec = func(k int) {
		if k == n {
			p := make([]int, n)
			copy(p, ids)
			out = append(out, p)
			return
		}
		for i := k; i < n; i++ {
			ids[k], ids[i] = ids[i], ids[k]
			rec(k + 1)
			ids[k], ids[i] = ids[i], ids[k]
		}
	}
	rec(0)
	return out
}
