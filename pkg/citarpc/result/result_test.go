package result

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestQuantityUnmarshal(t *testing.T) {
	testCases := map[string]uint64{
		`"0x1a"`: 26,
		`"0x0"`:  0,
		`"0x"`:   0,
		`26`:     26,
		`"26"`:   26,
		`"010"`:  10,
		`"0X10"`: 16,
	}
	for in, expected := range testCases {
		var q Quantity
		require.NoError(t, json.Unmarshal([]byte(in), &q), in)
		require.Equal(t, expected, q.Uint64(), in)
	}

	for _, in := range []string{`"0xzz"`, `"-1"`, `"abc"`, `1.5`, `true`, `""`} {
		var q Quantity
		require.Error(t, json.Unmarshal([]byte(in), &q), in)
	}

	t.Run("big", func(t *testing.T) {
		var q Quantity
		require.NoError(t, json.Unmarshal([]byte(`"0x400000000000000000"`), &q))
		require.False(t, q.IsUint64())
		expected := new(uint256.Int).Lsh(uint256.NewInt(1), 74)
		require.Equal(t, expected, q.Int())
		require.Equal(t, "18889465931478580854784", q.String())

		var d Quantity
		require.NoError(t, json.Unmarshal([]byte(`18889465931478580854784`), &d))
		require.Equal(t, 0, q.Cmp(d))
	})
	t.Run("null", func(t *testing.T) {
		q := NewQuantity(5)
		require.NoError(t, json.Unmarshal([]byte(`null`), &q))
		require.EqualValues(t, 5, q.Uint64())
	})
}

func TestQuantityMarshal(t *testing.T) {
	data, err := json.Marshal(NewQuantity(255))
	require.NoError(t, err)
	require.Equal(t, `"0xff"`, string(data))

	var q Quantity
	require.NoError(t, json.Unmarshal(data, &q))
	require.Equal(t, NewQuantity(255), q)
	require.Equal(t, "0xff", QuantityFromInt(uint256.NewInt(255)).Hex())
	require.True(t, QuantityFromInt(nil).Int().IsZero())
}

const testReceipt = `{
	"transactionHash": "0x5a6d3e1f03d9a04d2fd3b0c4e41f6f6d0b0d6ccdcd1fb0bdd91c77d1cf3b3f11",
	"transactionIndex": "0x0",
	"blockHash": "0x1b0d6ccdcd1fb0bdd91c77d1cf3b3f115a6d3e1f03d9a04d2fd3b0c4e41f6f6d",
	"blockNumber": "0x2a",
	"cumulativeQuotaUsed": "0x5208",
	"quotaUsed": "0x5208",
	"contractAddress": null,
	"logs": [],
	"root": null,
	"errorMessage": null
}`

func TestReceipt(t *testing.T) {
	var r Receipt
	require.NoError(t, json.Unmarshal([]byte(testReceipt), &r))
	require.True(t, r.Mined())
	require.EqualValues(t, 42, r.BlockNumber.Uint64())
	require.EqualValues(t, 21000, r.QuotaUsed.Uint64())
	require.Nil(t, r.ContractAddress)
	require.False(t, r.Failed())
	require.Equal(t, "OK", r.Status())

	var pending Receipt
	require.NoError(t, json.Unmarshal([]byte(`{"transactionHash":"0x5a6d3e1f03d9a04d2fd3b0c4e41f6f6d0b0d6ccdcd1fb0bdd91c77d1cf3b3f11","blockNumber":null,"errorMessage":"Not enough base quota"}`), &pending))
	require.False(t, pending.Mined())
	require.True(t, pending.Failed())
	require.Equal(t, "Not enough base quota", pending.Status())
}

func TestBlock(t *testing.T) {
	const h1 = "0x5a6d3e1f03d9a04d2fd3b0c4e41f6f6d0b0d6ccdcd1fb0bdd91c77d1cf3b3f11"
	hashes := `{
		"version": 0,
		"hash": "0x1b0d6ccdcd1fb0bdd91c77d1cf3b3f115a6d3e1f03d9a04d2fd3b0c4e41f6f6d",
		"header": {"timestamp": 1560000000000, "number": "0x2a", "quotaUsed": "0x5290",
			"proposer": "0x19e49d3efd4e81dc82943ad9791c1916e2229138"},
		"body": {"transactions": ["` + h1 + `"]}
	}`
	var b Block
	require.NoError(t, json.Unmarshal([]byte(hashes), &b))
	require.EqualValues(t, 42, b.Number())
	require.EqualValues(t, 21000+68*2, b.Header.QuotaUsed.Uint64())
	require.Equal(t, []common.Hash{common.HexToHash(h1)}, b.TxHashes())
	require.Nil(t, b.Body.Transactions[0].Full)
	require.JSONEq(t, hashes, string(b.Raw))
	require.NotNil(t, b.FindTransaction(common.HexToHash(h1)))
	require.Nil(t, b.FindTransaction(common.Hash{}))

	full := `{
		"hash": "0x1b0d6ccdcd1fb0bdd91c77d1cf3b3f115a6d3e1f03d9a04d2fd3b0c4e41f6f6d",
		"header": {"number": "0x2a"},
		"body": {"transactions": [{"hash": "` + h1 + `", "content": [18, 52],
			"from": "0x19e49d3efd4e81dc82943ad9791c1916e2229138", "blockNumber": "0x2a", "index": "0x0"}]}
	}`
	var fb Block
	require.NoError(t, json.Unmarshal([]byte(full), &fb))
	tx := fb.Body.Transactions[0]
	require.NotNil(t, tx.Full)
	require.Equal(t, common.HexToHash(h1), tx.Hash)
	require.Equal(t, common.HexToAddress("0x19e49d3efd4e81dc82943ad9791c1916e2229138"), tx.Full.From)
	content, err := tx.Full.ContentBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x12, 0x34}, content)

	data, err := json.Marshal(fb.Body.Transactions)
	require.NoError(t, err)
	var back []BlockTransaction
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, fb.Body.Transactions[0].Hash, back[0].Hash)
}

func TestContentBytes(t *testing.T) {
	for in, expected := range map[string][]byte{
		`"0x1234"`: {0x12, 0x34},
		`"1234"`:   {0x12, 0x34},
		`""`:       nil,
		`null`:     nil,
		`[1, 255]`: {1, 255},
	} {
		tx := Transaction{Content: json.RawMessage(in)}
		b, err := tx.ContentBytes()
		require.NoError(t, err, in)
		require.Equal(t, expected, b, in)
	}
	for _, in := range []string{`[256]`, `{}`, `"0xz"`} {
		tx := Transaction{Content: json.RawMessage(in)}
		_, err := tx.ContentBytes()
		require.Error(t, err, in)
	}
}

func TestSendResult(t *testing.T) {
	const h = "0x5a6d3e1f03d9a04d2fd3b0c4e41f6f6d0b0d6ccdcd1fb0bdd91c77d1cf3b3f11"
	for _, in := range []string{
		`{"hash":"` + h + `","status":"OK"}`,
		`{"transactionHash":"` + h + `","status":"OK"}`,
		`"` + h + `"`,
	} {
		var r SendResult
		require.NoError(t, json.Unmarshal([]byte(in), &r), in)
		require.Equal(t, common.HexToHash(h), r.Hash, in)
	}
}

func TestCallRequestCLIArgs(t *testing.T) {
	from := common.HexToAddress("0x01")
	c := CallRequest{From: &from, To: common.HexToAddress("0x02"), Data: []byte{0x6d, 0x4c, 0xe6, 0x3c}}
	require.Equal(t, []string{"--from", from.Hex(), "--to", c.To.Hex(), "--data", "0x6d4ce63c"}, c.CLIArgs())

	data, err := json.Marshal(CallRequest{To: c.To})
	require.NoError(t, err)
	require.JSONEq(t, `{"to":"`+c.To.Hex()+`"}`, string(data))
}
