package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiscovererRegisterGoodBad(t *testing.T) {
	d := NewDiscoverer(nil, time.Second, time.Minute, nil)
	d.RegisterBad("1.2.3.4:10333")
	require.Equal(t, 1, d.Count())
	require.Empty(t, d.GoodAddresses("", 10))

	d.RegisterGood("1.2.3.4:10333")
	require.Equal(t, []string{"1.2.3.4:10333"}, d.GoodAddresses("", 10))
}

func TestDiscovererBanExpiry(t *testing.T) {
	d := NewDiscoverer(nil, time.Second, time.Minute, nil)
	now := time.Now()
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	d.Ban("5.6.7.8:10333")
	require.True(t, d.IsBanned("5.6.7.8:10333"))

	now = now.Add(2 * time.Minute)
	require.False(t, d.IsBanned("5.6.7.8:10333"))
}

func TestDiscovererMergeAndCandidates(t *testing.T) {
	d := NewDiscoverer([]string{"seed1:10333"}, time.Second, time.Minute, nil)
	d.Merge([]string{"seed1:10333", "peer2:10333", "peer3:10333"})
	require.Equal(t, 3, d.Count())

	d.RegisterGood("peer2:10333")
	cands := d.Candidates(10)
	require.NotContains(t, cands, "peer2:10333")
	require.Contains(t, cands, "seed1:10333")
	require.Contains(t, cands, "peer3:10333")
}

func TestDiscovererCandidatesExcludesBanned(t *testing.T) {
	d := NewDiscoverer([]string{"a:1", "b:2"}, time.Second, time.Minute, nil)
	d.Ban("a:1")
	cands := d.Candidates(10)
	require.NotContains(t, cands, "a:1")
	require.Contains(t, cands, "b:2")
}
