package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	ModifiedFlagNew = 1 << 0
	ModifiedFlagMod = 1 << 1
)

var (
	KeyState         = "s"
	KeyCampaignBody  = "c%x"
	KeyCampaignIndex = "ci%d"
	KeyContributor   = "m%x%x"
	KeyRequestBody   = "r%x/%d"
	KeyVote          = "v%x/%d/%x"
	KeyAccountBody   = "a%x"
)

var (
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrCampaignIndex        = errors.New("campaign index out of range")
)

type StateHeader struct {
	Height    uint64 `json:"height"`
	ChainId   string `json:"chain_id"`
	Campaigns uint64 `json:"campaigns"`
	RootHash  []byte `json:"root_hash"`
	Hash      []byte `json:"hash"`
}

func (h *StateHeader) Clone() *StateHeader {
	n := *h
	n.RootHash = common.CopyBytes(h.RootHash)
	n.Hash = common.CopyBytes(h.Hash)
	return &n
}

func (h *StateHeader) GetHash() []byte {
	if h == nil {
		return nil
	}
	return h.Hash
}

type requestKey struct {
	Campaign common.Address
	Index    uint64
}

type memberKey struct {
	Campaign common.Address
	Identity common.Address
}

type voteKey struct {
	Campaign common.Address
	Index    uint64
	Identity common.Address
}

// State is a working snapshot of the ledger. Reads fall through to the tree,
// writes stay in the snapshot until Update flushes them.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header        *StateHeader
	campaigns     map[common.Address]*types.Campaign
	requests      map[requestKey]*types.Request
	contributions map[memberKey]uint64
	votes         map[voteKey]bool
	acnts         map[common.Address]*Account

	modCampaigns     map[common.Address]uint32
	modRequests      map[requestKey]uint32
	modContributions map[memberKey]uint32
	modVotes         map[voteKey]uint32
	modAcnts         map[common.Address]uint32
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	s := &State{
		logger: logger,
		db:     db,
		dbVer:  0,
		header: new(StateHeader),
	}
	s.resetCaches()
	return s
}

func (s *State) resetCaches() {
	s.campaigns = make(map[common.Address]*types.Campaign)
	s.requests = make(map[requestKey]*types.Request)
	s.contributions = make(map[memberKey]uint64)
	s.votes = make(map[voteKey]bool)
	s.acnts = make(map[common.Address]*Account)
	s.modCampaigns = make(map[common.Address]uint32)
	s.modRequests = make(map[requestKey]uint32)
	s.modContributions = make(map[memberKey]uint32)
	s.modVotes = make(map[voteKey]uint32)
	s.modAcnts = make(map[common.Address]uint32)
}

func (s *State) nextState() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
	}
	n.resetCaches()
	n.header = s.header.Clone()
	if s.header.GetHash() != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func deepCopyMap[K comparable, V any](source map[K]V) map[K]V {
	res := make(map[K]V, len(source))
	for k, v := range source {
		switch x := any(v).(type) {
		case *types.Campaign:
			res[k] = any(x.Clone()).(V)
		case *types.Request:
			res[k] = any(x.Clone()).(V)
		case *Account:
			res[k] = any(x.Clone()).(V)
		default:
			res[k] = v
		}
	}
	return res
}

// Clone copies the snapshot so a single transaction can be applied and then
// either kept or dropped.
func (s *State) Clone() *State {
	return &State{
		logger:           s.logger,
		db:               s.db,
		dbVer:            s.dbVer,
		header:           s.header.Clone(),
		campaigns:        deepCopyMap(s.campaigns),
		requests:         deepCopyMap(s.requests),
		contributions:    deepCopyMap(s.contributions),
		votes:            deepCopyMap(s.votes),
		acnts:            deepCopyMap(s.acnts),
		modCampaigns:     deepCopyMap(s.modCampaigns),
		modRequests:      deepCopyMap(s.modRequests),
		modContributions: deepCopyMap(s.modContributions),
		modVotes:         deepCopyMap(s.modVotes),
		modAcnts:         deepCopyMap(s.modAcnts),
	}
}

func (s *State) load() (err error) {
	h, err := readHeader(s.db)
	if err != nil {
		return err
	}
	if h == nil {
		return nil
	}
	s.header = h
	root := s.db.Hash()
	if root != nil {
		s.calcHash(root, true)
	}
	return
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

func (s *State) Modified() bool {
	return len(s.modCampaigns) != 0 || len(s.modRequests) != 0 || len(s.modContributions) != 0 ||
		len(s.modVotes) != 0 || len(s.modAcnts) != 0
}

// Update flushes every modified record to the working tree in key order and
// returns the working hash. The tree is rolled back on failure.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	writes := make(map[string][]byte)

	for addr, flag := range s.modCampaigns {
		c := s.campaigns[addr]
		writes[fmt.Sprintf(KeyCampaignBody, addr)], err = json.Marshal(c)
		if err != nil {
			return
		}
		if flag&ModifiedFlagNew == ModifiedFlagNew {
			writes[fmt.Sprintf(KeyCampaignIndex, c.Index)] = c.Address.Bytes()
		}
	}
	for key := range s.modRequests {
		writes[fmt.Sprintf(KeyRequestBody, key.Campaign, key.Index)], err = json.Marshal(s.requests[key])
		if err != nil {
			return
		}
	}
	for key := range s.modContributions {
		writes[fmt.Sprintf(KeyContributor, key.Campaign, key.Identity)], err = rlp.EncodeToBytes(s.contributions[key])
		if err != nil {
			return
		}
	}
	for key := range s.modVotes {
		writes[fmt.Sprintf(KeyVote, key.Campaign, key.Index, key.Identity)] = []byte{1}
	}
	for addr := range s.modAcnts {
		writes[fmt.Sprintf(KeyAccountBody, addr)], err = json.Marshal(s.acnts[addr])
		if err != nil {
			return
		}
	}
	writes[KeyState], err = json.Marshal(s.header)
	if err != nil {
		return
	}

	keys := make([]string, 0, len(writes))
	for k := range writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, err = s.db.Set([]byte(k), writes[k])
		if err != nil {
			return
		}
	}

	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.modCampaigns = make(map[common.Address]uint32)
	s.modRequests = make(map[requestKey]uint32)
	s.modContributions = make(map[memberKey]uint32)
	s.modVotes = make(map[voteKey]uint32)
	s.modAcnts = make(map[common.Address]uint32)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) GetCampaign(addr common.Address) (c *types.Campaign, err error) {
	c = s.campaigns[addr]
	if c != nil {
		return c.Clone(), nil
	}
	c, err = readCampaign(s.db, addr)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, types.ErrCampaignNotFound
	}
	s.campaigns[addr] = c
	return c.Clone(), nil
}

func (s *State) setCampaign(c *types.Campaign, flag uint32) {
	s.campaigns[c.Address] = c.Clone()
	s.modCampaigns[c.Address] |= flag
}

func (s *State) CampaignAt(index uint64) (common.Address, error) {
	if index >= s.header.Campaigns {
		return common.Address{}, ErrCampaignIndex
	}
	for addr, c := range s.campaigns {
		if c.Index == index {
			return addr, nil
		}
	}
	return readCampaignAt(s.db, index)
}

func (s *State) GetRequest(campaign common.Address, index uint64) (r *types.Request, err error) {
	key := requestKey{Campaign: campaign, Index: index}
	r = s.requests[key]
	if r != nil {
		return r.Clone(), nil
	}
	r, err = readRequest(s.db, campaign, index)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, types.ErrRequestNotFound
	}
	s.requests[key] = r
	return r.Clone(), nil
}

func (s *State) setRequest(r *types.Request, flag uint32) {
	key := requestKey{Campaign: r.Campaign, Index: r.Index}
	s.requests[key] = r.Clone()
	s.modRequests[key] |= flag
}

// Contribution returns the cumulative amount an identity has contributed and
// whether it is in the contributor registry.
func (s *State) Contribution(campaign, who common.Address) (amount uint64, member bool, err error) {
	key := memberKey{Campaign: campaign, Identity: who}
	if v, ok := s.contributions[key]; ok {
		return v, true, nil
	}
	amount, member, err = readContribution(s.db, campaign, who)
	if err != nil || !member {
		return
	}
	s.contributions[key] = amount
	return
}

func (s *State) setContribution(campaign, who common.Address, amount uint64) {
	key := memberKey{Campaign: campaign, Identity: who}
	s.contributions[key] = amount
	s.modContributions[key] |= ModifiedFlagMod
}

func (s *State) HasVoted(campaign common.Address, index uint64, who common.Address) (bool, error) {
	key := voteKey{Campaign: campaign, Index: index, Identity: who}
	if s.votes[key] {
		return true, nil
	}
	voted, err := readVote(s.db, campaign, index, who)
	if err != nil {
		return false, err
	}
	if voted {
		s.votes[key] = true
	}
	return voted, nil
}

func (s *State) setVote(campaign common.Address, index uint64, who common.Address) {
	key := voteKey{Campaign: campaign, Index: index, Identity: who}
	s.votes[key] = true
	s.modVotes[key] = ModifiedFlagNew
}

// GetAccount never fails for an unknown identity; it returns an empty account.
func (s *State) GetAccount(addr common.Address) (acnt *Account, err error) {
	acnt = s.acnts[addr]
	if acnt != nil {
		return acnt.Clone(), nil
	}
	acnt, err = readAccount(s.db, addr)
	if err != nil {
		return nil, err
	}
	if acnt == nil {
		return &Account{Address: addr}, nil
	}
	s.acnts[addr] = acnt
	return acnt.Clone(), nil
}

func (s *State) setAccount(acnt *Account, flag uint32) {
	s.acnts[acnt.Address] = acnt.Clone()
	s.modAcnts[acnt.Address] |= flag
}

func (s *State) AddAccount(addr common.Address, balance uint64) (err error) {
	acnt, err := readAccount(s.db, addr)
	if err != nil {
		return err
	}
	if acnt != nil || s.acnts[addr] != nil {
		return ErrAccountAlreadyExists
	}
	s.setAccount(&Account{Address: addr, Balance: balance}, ModifiedFlagNew)
	return
}

// Verify recovers the sender of a tx and checks its nonce.
func (s *State) Verify(btx *tx.CFTx, allowNonceGap bool) (sender common.Address, err error) {
	sender, err = btx.Sender(s.header.ChainId)
	if err != nil {
		return
	}
	a, err := s.GetAccount(sender)
	if err != nil {
		return
	}
	if !(a.Nonce == btx.Nonce || (allowNonceGap && a.Nonce < btx.Nonce)) {
		err = fmt.Errorf("%w: expect %v got %v", types.ErrNonceInvalid, a.Nonce, btx.Nonce)
	}
	return
}

func (s *State) IncNonce(addr common.Address) error {
	a, err := s.GetAccount(addr)
	if err != nil {
		return err
	}
	a.Nonce += 1
	s.setAccount(a, ModifiedFlagMod)
	return nil
}

// kvReader is satisfied by both the mutable working tree and the immutable
// tree of a saved version.
type kvReader interface {
	Get(key []byte) ([]byte, error)
}

type emptyReader struct{}

func (emptyReader) Get(key []byte) ([]byte, error) { return nil, nil }

func get(r kvReader, key string) ([]byte, error) {
	val, err := r.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func readHeader(r kvReader) (*StateHeader, error) {
	val, err := get(r, KeyState)
	if err != nil || val == nil {
		return nil, err
	}
	h := new(StateHeader)
	if err = json.Unmarshal(val, h); err != nil {
		return nil, err
	}
	return h, nil
}

func readCampaign(r kvReader, addr common.Address) (*types.Campaign, error) {
	val, err := get(r, fmt.Sprintf(KeyCampaignBody, addr))
	if err != nil || val == nil {
		return nil, err
	}
	c := new(types.Campaign)
	if err = json.Unmarshal(val, c); err != nil {
		return nil, err
	}
	return c, nil
}

func readCampaignAt(r kvReader, index uint64) (common.Address, error) {
	val, err := get(r, fmt.Sprintf(KeyCampaignIndex, index))
	if err != nil {
		return common.Address{}, err
	}
	if val == nil {
		return common.Address{}, ErrCampaignIndex
	}
	return common.BytesToAddress(val), nil
}

func readRequest(r kvReader, campaign common.Address, index uint64) (*types.Request, error) {
	val, err := get(r, fmt.Sprintf(KeyRequestBody, campaign, index))
	if err != nil || val == nil {
		return nil, err
	}
	req := new(types.Request)
	if err = json.Unmarshal(val, req); err != nil {
		return nil, err
	}
	return req, nil
}

func readContribution(r kvReader, campaign, who common.Address) (amount uint64, member bool, err error) {
	val, err := get(r, fmt.Sprintf(KeyContributor, campaign, who))
	if err != nil || val == nil {
		return
	}
	err = rlp.DecodeBytes(val, &amount)
	member = err == nil
	return
}

func readVote(r kvReader, campaign common.Address, index uint64, who common.Address) (bool, error) {
	val, err := get(r, fmt.Sprintf(KeyVote, campaign, index, who))
	if err != nil {
		return false, err
	}
	return val != nil, nil
}

func readAccount(r kvReader, addr common.Address) (*Account, error) {
	val, err := get(r, fmt.Sprintf(KeyAccountBody, addr))
	if err != nil || val == nil {
		return nil, err
	}
	a := new(Account)
	if err = json.Unmarshal(val, a); err != nil {
		return nil, err
	}
	return a, nil
}
