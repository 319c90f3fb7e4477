package citarpc

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/stretchr/testify/require"
)

func TestLogFilterJSON(t *testing.T) {
	addr := common.HexToAddress("0x2ae83ce578e4bb7968104b5d7c034af36a771a35")
	topic := common.HexToHash("0x01")

	f := LogFilter{FromBlock: Height(5), ToBlock: Height(5), Address: []common.Address{addr}, Topics: []*common.Hash{&topic, nil}}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	require.JSONEq(t, `{"fromBlock":"0x5","toBlock":"0x5","address":"0x2ae83ce578e4bb7968104b5d7c034af36a771a35",`+
		`"topics":["0x0000000000000000000000000000000000000000000000000000000000000001",null]}`, string(data))

	var dec LogFilter
	require.NoError(t, json.Unmarshal(data, &dec))
	require.Equal(t, f, dec)

	data, err = json.Marshal(LogFilter{})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(data))

	require.NoError(t, json.Unmarshal([]byte(`{"address":["0x01","0x02"]}`), &dec))
	require.Equal(t, []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}, dec.Address)
	require.Nil(t, dec.Topics)
	require.Empty(t, dec.FromBlock)

	require.Error(t, json.Unmarshal([]byte(`{"address":1}`), &dec))
}

func TestLogFilterCLIArgs(t *testing.T) {
	topic := common.HexToHash("0x01")
	f := LogFilter{
		FromBlock: Earliest,
		Address:   []common.Address{common.HexToAddress("0x02")},
		Topics:    []*common.Hash{nil, &topic},
	}
	require.Equal(t, []string{
		"--address", common.HexToAddress("0x02").Hex(),
		"--topic", "null",
		"--topic", topic.Hex(),
		"--from", "earliest",
	}, f.CLIArgs())
	require.Empty(t, LogFilter{}.CLIArgs())
}

func TestLogFilterMatches(t *testing.T) {
	var (
		a, b   = common.HexToAddress("0x0a"), common.HexToAddress("0x0b")
		t0, t1 = common.HexToHash("0x10"), common.HexToHash("0x11")
		t2     = common.HexToHash("0x12")
		l      = result.Log{Address: a, Topics: []common.Hash{t0, t1, t2}}
	)
	for name, tc := range map[string]struct {
		f  LogFilter
		ok bool
	}{
		"empty":             {LogFilter{}, true},
		"address":           {LogFilter{Address: []common.Address{a}}, true},
		"address list":      {LogFilter{Address: []common.Address{b, a}}, true},
		"other address":     {LogFilter{Address: []common.Address{b}}, false},
		"first topic":       {LogFilter{Topics: []*common.Hash{&t0}}, true},
		"wildcard":          {LogFilter{Topics: []*common.Hash{&t0, nil, &t2}}, true},
		"wrong position":    {LogFilter{Topics: []*common.Hash{&t1}}, false},
		"too many topics":   {LogFilter{Topics: []*common.Hash{nil, nil, nil, nil}}, false},
		"address and topic": {LogFilter{Address: []common.Address{a}, Topics: []*common.Hash{nil, &t1}}, true},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.ok, tc.f.Matches(l))
		})
	}
}
