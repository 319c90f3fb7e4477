/*
Package fakenode implements an in-memory CITA-dialect node for tests. It
accepts signed transactions, seals them into blocks, applies the transfer fee
model and emulates the MyStore fixture contract, serving all of it via
JSON-RPC over HTTP and WebSocket.
*/
package fakenode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc"
	"github.com/nspcc-dev/rpcprobe/pkg/citarpc/result"
	"github.com/nspcc-dev/rpcprobe/pkg/core/transaction"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/hash"
	"github.com/nspcc-dev/rpcprobe/pkg/crypto/keys"
	"github.com/nspcc-dev/rpcprobe/pkg/fixture/emitter"
	"github.com/nspcc-dev/rpcprobe/pkg/fixture/simplestorage"
	"github.com/nspcc-dev/rpcprobe/pkg/oracle"
	"github.com/nspcc-dev/rpcprobe/pkg/wallet"
	"go.uber.org/zap"
)

// Execution costs of the emulated contracts, on top of the intrinsic quota.
const (
	DeployQuota        = 32000 + 200*simplestorage.RuntimeCodeLen + 20000
	StorageSetQuota    = 20000
	StorageResetQuota  = 5000
	ContractReadQuota  = 800
	EmitterDeployQuota = 32000 + 200*emitter.RuntimeCodeLen
	EmitQuota          = 1800
	maxValidUntilBlock = 100
)

// TxValidationErrorCode is the error code of rejected transactions.
const TxValidationErrorCode = -32006

// Transaction rejection reasons, used as error messages.
const (
	RejectDup               = "Dup"
	RejectInvalidUntilBlock = "InvalidUntilBlock"
	RejectBadSig            = "BadSig"
	RejectBadChainID        = "BadChainId"
	RejectQuotaNotEnough    = "QuotaNotEnough"
	RejectNotEnoughBalance  = "NotEnoughBalance"
	RejectInvalidFormat     = "InvalidFormat"
)

// Receipt error messages.
const (
	ErrMsgOutOfQuota       = "Out of quota."
	ErrMsgReverted         = "Reverted."
	ErrMsgNotEnoughBalance = "Not enough balance."
	ErrMsgUnsupportedCode  = "Unsupported contract code."
)

// DefaultGenesisBalance is the balance of every pre-funded account.
var DefaultGenesisBalance = new(uint256.Int).Lsh(uint256.NewInt(0x40), 64)

// Config is the fake node configuration.
type Config struct {
	ChainID uint64
	Scheme  keys.AddressScheme
	Fee     oracle.FeeModel
	// BurnFees makes the node burn fees instead of paying them to the
	// proposer.
	BurnFees  bool
	Proposer  common.Address
	Genesis   map[common.Address]*uint256.Int
	PeerCount uint64
	// AcceptLowQuota makes the node accept transactions with quota below
	// the intrinsic cost and mine them as failed instead of rejecting.
	AcceptLowQuota bool
	// SeenCacheSize limits the number of remembered transaction hashes
	// used to reject duplicates.
	SeenCacheSize int
	Logger        *zap.Logger
}

// DefaultConfig returns a configuration with wallet.DefaultKeys accounts
// pre-funded and the first of them being the proposer getting fees.
func DefaultConfig() Config {
	w, err := wallet.NewWallet(nil, keys.MutaScheme)
	if err != nil {
		panic(err)
	}
	genesis := make(map[common.Address]*uint256.Int, len(w.Accounts))
	for _, acc := range w.Accounts {
		genesis[acc.Address()] = new(uint256.Int).Set(DefaultGenesisBalance)
	}
	return Config{
		ChainID:       1,
		Scheme:        keys.MutaScheme,
		Fee:           oracle.DefaultFeeModel(),
		Proposer:      w.Accounts[0].Address(),
		Genesis:       genesis,
		PeerCount:     1,
		SeenCacheSize: 4096,
	}
}

type (
	// Node is an in-memory chain.
	Node struct {
		cfg Config
		log *zap.Logger

		lock    sync.RWMutex
		st      *state
		blocks  []*block
		byHash  map[common.Hash]uint64
		txs     map[common.Hash]*txRecord
		pending []*txRecord
		seen    *lru.Cache
		filters map[uint64]*filter
		lastID  uint64

		tickerLock sync.Mutex
		stop       chan struct{}
		done       chan struct{}
	}

	block struct {
		result.Block
		headerBytes []byte
	}

	txRecord struct {
		tx      *transaction.Signed
		from    common.Address
		height  uint64
		index   uint64
		receipt *result.Receipt
	}

	// filter is a block filter unless logs is set.
	filter struct {
		last uint64
		logs *citarpc.LogFilter
	}
)

// ErrAlreadyRunning is returned on Start of a node that is already running.
var ErrAlreadyRunning = errors.New("node is already running")

// New creates a node with a genesis block.
func New(cfg Config) (*Node, error) {
	if cfg.Fee.BaseQuota == 0 {
		cfg.Fee = oracle.DefaultFeeModel()
	}
	if !cfg.Scheme.Valid() {
		cfg.Scheme = keys.MutaScheme
	}
	if cfg.SeenCacheSize <= 0 {
		cfg.SeenCacheSize = 4096
	}
	seen, err := lru.New(cfg.SeenCacheSize)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	n := &Node{
		cfg:     cfg,
		log:     log,
		st:      newState(),
		byHash:  make(map[common.Hash]uint64),
		txs:     make(map[common.Hash]*txRecord),
		seen:    seen,
		filters: make(map[uint64]*filter),
	}
	for addr, bal := range cfg.Genesis {
		n.st.setBalance(addr, 0, bal)
	}
	n.appendBlock(nil, 0)
	return n, nil
}

// Config returns node configuration.
func (n *Node) Config() Config {
	return n.cfg
}

// Height returns the current block number.
func (n *Node) Height() uint64 {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.height()
}

func (n *Node) height() uint64 {
	return uint64(len(n.blocks) - 1)
}

// Balance returns the latest balance of the account.
func (n *Node) Balance(addr common.Address) *uint256.Int {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.st.balance(addr, n.height())
}

// PendingCount returns the number of transactions waiting to be sealed.
func (n *Node) PendingCount() int {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return len(n.pending)
}

func reject(reason string) *citarpc.Error {
	return citarpc.NewError(TxValidationErrorCode, reason, "")
}

// SubmitRaw verifies the transaction and adds it to the pending list.
func (n *Node) SubmitRaw(raw []byte) (common.Hash, *citarpc.Error) {
	tx, err := transaction.DecodeSigned(raw)
	if err != nil {
		return common.Hash{}, citarpc.NewError(TxValidationErrorCode, RejectInvalidFormat, err.Error())
	}
	return n.Submit(tx)
}

// Submit verifies the transaction and adds it to the pending list.
func (n *Node) Submit(tx *transaction.Signed) (common.Hash, *citarpc.Error) {
	from, err := tx.Sender(n.cfg.Scheme)
	if err != nil {
		return common.Hash{}, reject(RejectBadSig)
	}
	inner := tx.Transaction()

	n.lock.Lock()
	defer n.lock.Unlock()
	h := tx.Hash()
	if n.seen.Contains(h) {
		return common.Hash{}, reject(RejectDup)
	}
	if inner.ChainID != n.cfg.ChainID {
		return common.Hash{}, reject(RejectBadChainID)
	}
	height := n.height()
	if inner.ValidUntilBlock <= height || inner.ValidUntilBlock > height+maxValidUntilBlock {
		return common.Hash{}, reject(RejectInvalidUntilBlock)
	}
	if !n.cfg.AcceptLowQuota && inner.Quota < n.cfg.Fee.IntrinsicQuota(inner.Data) {
		return common.Hash{}, reject(RejectQuotaNotEnough)
	}
	need := n.cfg.Fee.Fee(inner.Quota)
	need.Add(need, inner.Value)
	if n.st.balance(from, height).Lt(need) {
		return common.Hash{}, reject(RejectNotEnoughBalance)
	}
	n.seen.Add(h, struct{}{})
	n.pending = append(n.pending, &txRecord{tx: tx, from: from})
	n.log.Debug("transaction accepted", zap.Stringer("hash", h), zap.Stringer("from", from))
	return h, nil
}

// Seal executes pending transactions and creates a new block with them.
func (n *Node) Seal() *result.Block {
	n.lock.Lock()
	defer n.lock.Unlock()

	height := n.height() + 1
	var (
		included   []*txRecord
		cumulative uint64
	)
	for _, rec := range n.pending {
		rec.height = height
		rec.index = uint64(len(included))
		rec.receipt = n.execute(rec, height)
		cumulative += rec.receipt.QuotaUsed.Uint64()
		rec.receipt.CumulativeQuotaUsed = result.NewQuantity(cumulative)
		included = append(included, rec)
	}
	n.pending = nil
	b := n.appendBlock(included, cumulative)
	n.log.Debug("block sealed", zap.Uint64("height", height), zap.Int("txs", len(included)))
	return &b.Block
}

// execute applies the transaction to the state at the given height and
// returns its receipt (without block data).
func (n *Node) execute(rec *txRecord, height uint64) *result.Receipt {
	var (
		inner     = rec.tx.Transaction()
		fee       = n.cfg.Fee
		quotaUsed = fee.IntrinsicQuota(inner.Data)
		nonce     = n.st.nonce(rec.from, height)
		errMsg    string
		created   *common.Address
		target    common.Address
		write     *common.Hash
		code      []byte
		logs      = []result.Log{}
	)
	switch {
	case inner.IsDeploy():
		target = crypto.CreateAddress(rec.from, nonce)
		switch {
		case bytes.Equal(inner.Data, simplestorage.CreationCode):
			code = simplestorage.RuntimeCode
			quotaUsed += DeployQuota
		case bytes.Equal(inner.Data, emitter.CreationCode):
			code = emitter.RuntimeCode
			quotaUsed += EmitterDeployQuota
		default:
			errMsg = ErrMsgUnsupportedCode
		}
	case emitter.IsRuntimeCode(n.st.code(*inner.To, height)):
		target = *inner.To
		quotaUsed += EmitQuota
		// Input is right-padded to a word, as CALLDATALOAD does.
		var value common.Hash
		copy(value[:], inner.Data)
		data := uint256.NewInt(height).Bytes32()
		logs = append(logs, result.Log{
			Address: target,
			Topics:  []common.Hash{emitter.EventID, common.BytesToHash(rec.from.Bytes()), value},
			Data:    data[:],
		})
	case simplestorage.IsRuntimeCode(n.st.code(*inner.To, height)):
		target = *inner.To
		in := inner.Data
		switch {
		case len(in) == 4+32 && bytes.Equal(in[:4], simplestorage.SetSelector):
			v := common.BytesToHash(in[4:])
			write = &v
			if n.st.storage(target, simplestorage.ValueSlot, height) == (common.Hash{}) {
				quotaUsed += StorageSetQuota
			} else {
				quotaUsed += StorageResetQuota
			}
		case len(in) >= 4 && bytes.Equal(in[:4], simplestorage.GetSelector):
			quotaUsed += ContractReadQuota
		default:
			errMsg = ErrMsgReverted
		}
	default:
		target = *inner.To
	}
	if errMsg == "" && quotaUsed > inner.Quota {
		errMsg = ErrMsgOutOfQuota
		quotaUsed = inner.Quota
	}

	charge := fee.Fee(quotaUsed)
	bal := n.st.balance(rec.from, height)
	if errMsg == "" && bal.Lt(new(uint256.Int).Add(charge, inner.Value)) {
		errMsg = ErrMsgNotEnoughBalance
	}
	if bal.Lt(charge) {
		charge.Set(bal)
	}
	bal.Sub(bal, charge)
	if errMsg == "" {
		bal.Sub(bal, inner.Value)
	}
	n.st.setBalance(rec.from, height, bal)
	n.st.setNonce(rec.from, height, nonce+1)

	if errMsg == "" {
		rcpt := n.st.balance(target, height)
		n.st.setBalance(target, height, rcpt.Add(rcpt, inner.Value))
		if inner.IsDeploy() {
			n.st.setCode(target, height, code)
			if simplestorage.IsRuntimeCode(code) {
				n.st.setStorage(target, simplestorage.ValueSlot, height,
					common.Hash(uint256.NewInt(simplestorage.InitialValue).Bytes32()))
			}
			created = &target
		}
		if write != nil {
			n.st.setStorage(target, simplestorage.ValueSlot, height, *write)
		}
	}
	if !n.cfg.BurnFees && !charge.IsZero() {
		p := n.st.balance(n.cfg.Proposer, height)
		n.st.setBalance(n.cfg.Proposer, height, p.Add(p, charge))
	}

	r := &result.Receipt{
		TransactionHash:  rec.tx.Hash(),
		TransactionIndex: result.NewQuantity(rec.index),
		QuotaUsed:        result.NewQuantity(quotaUsed),
		ContractAddress:  created,
		Logs:             []result.Log{},
	}
	if errMsg != "" {
		r.ErrorMessage = &errMsg
	} else {
		r.Logs = logs
	}
	return r
}

func (n *Node) appendBlock(txs []*txRecord, quotaUsed uint64) *block {
	height := uint64(len(n.blocks))
	var prev common.Hash
	if height > 0 {
		prev = n.blocks[height-1].Hash
	}

	hashes := make([][]byte, 0, len(txs))
	for _, rec := range txs {
		hashes = append(hashes, rec.tx.Hash().Bytes())
	}
	txRoot := hash.Keccak256Hash(hashes...)
	var rcptData []byte
	for _, rec := range txs {
		rcptData = binary.BigEndian.AppendUint64(rcptData, rec.receipt.QuotaUsed.Uint64())
		if rec.receipt.ErrorMessage != nil {
			rcptData = append(rcptData, *rec.receipt.ErrorMessage...)
		}
	}
	receiptsRoot := hash.Keccak256Hash(rcptData)
	var prevState common.Hash
	if height > 0 {
		prevState = n.blocks[height-1].Header.StateRoot
	}
	stateRoot := hash.Keccak256Hash(prevState.Bytes(), txRoot.Bytes(), receiptsRoot.Bytes())

	ts := uint64(time.Now().UnixMilli())
	var hdr []byte
	hdr = binary.BigEndian.AppendUint64(hdr, height)
	hdr = append(hdr, prev.Bytes()...)
	hdr = binary.BigEndian.AppendUint64(hdr, ts)
	hdr = append(hdr, stateRoot.Bytes()...)
	hdr = append(hdr, txRoot.Bytes()...)
	hdr = append(hdr, receiptsRoot.Bytes()...)
	hdr = binary.BigEndian.AppendUint64(hdr, quotaUsed)
	hdr = append(hdr, n.cfg.Proposer.Bytes()...)

	b := &block{headerBytes: hdr}
	b.Hash = hash.Keccak256Hash(hdr)
	b.Header = result.Header{
		Timestamp:        result.NewQuantity(ts),
		PrevHash:         prev,
		Number:           result.NewQuantity(height),
		StateRoot:        stateRoot,
		TransactionsRoot: txRoot,
		ReceiptsRoot:     receiptsRoot,
		QuotaUsed:        result.NewQuantity(quotaUsed),
		Proposer:         n.cfg.Proposer,
	}
	b.Body.Transactions = make([]result.BlockTransaction, 0, len(txs))
	num := result.NewQuantity(height)
	var logIndex uint64
	for _, rec := range txs {
		rec.receipt.BlockHash = b.Hash
		rec.receipt.BlockNumber = &num
		for i := range rec.receipt.Logs {
			l := &rec.receipt.Logs[i]
			l.BlockHash = b.Hash
			l.BlockNumber = num
			l.TransactionHash = rec.tx.Hash()
			l.TransactionIndex = rec.receipt.TransactionIndex
			l.LogIndex = result.NewQuantity(logIndex)
			l.TransactionLogIndex = result.NewQuantity(uint64(i))
			logIndex++
		}
		n.txs[rec.tx.Hash()] = rec
		b.Body.Transactions = append(b.Body.Transactions, result.BlockTransaction{Hash: rec.tx.Hash()})
	}
	n.blocks = append(n.blocks, b)
	n.byHash[b.Hash] = height
	return b
}

// Start seals a new block every interval until Stop is called.
func (n *Node) Start(interval time.Duration) error {
	n.tickerLock.Lock()
	defer n.tickerLock.Unlock()
	if n.stop != nil {
		return ErrAlreadyRunning
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.sealLoop(interval, n.stop, n.done)
	return nil
}

func (n *Node) sealLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	t := time.NewTicker(interval)
	defer func() {
		t.Stop()
		close(done)
	}()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			n.Seal()
		}
	}
}

// Stop stops block production started with Start.
func (n *Node) Stop() {
	n.tickerLock.Lock()
	defer n.tickerLock.Unlock()
	if n.stop == nil {
		return
	}
	close(n.stop)
	<-n.done
	n.stop, n.done = nil, nil
}

// resolveHeight converts a block tag into a height, latest is the current one.
func (n *Node) resolveHeight(tag string) (uint64, error) {
	switch citarpc.BlockTag(tag) {
	case "", citarpc.Latest, "pending":
		return n.height(), nil
	case citarpc.Earliest:
		return 0, nil
	}
	q, err := result.ParseQuantity(tag)
	if err != nil || !q.IsUint64() {
		return 0, fmt.Errorf("invalid height %q", tag)
	}
	h := q.Uint64()
	if h > n.height() {
		return 0, fmt.Errorf("height %d is not reached yet", h)
	}
	return h, nil
}
