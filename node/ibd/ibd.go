// Package ibd orchestrates Initial Block Download: building a block locator
// from the local chain, picking the most-advanced peer, and driving the
// GetBlocks/Blocks exchange to catch the local head up to the network's best
// known height (§4.7). It has no teacher analogue — it is genuinely new
// orchestration this spec requires that the teacher's single-node-at-a-time
// sync loop never needed.
package ibd

import (
	"sync"
	"time"

	"corechain.dev/node/consensus"
	"corechain.dev/node/node/chain"
)

// State is the downloader's coarse lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateSynced
)

// DefaultStallTimeout bounds how long the manager waits for a Blocks reply
// before reassigning to a different peer (§4.7).
const DefaultStallTimeout = 2 * time.Minute

// locatorStep ancestors are walked one at a time before the locator starts
// doubling the gap between entries (the classic block-locator shape).
const locatorStep = 10

// PeerSyncClient is the subset of peer behaviour the downloader needs: its
// self-reported best height and the ability to send a GetBlocks request.
type PeerSyncClient interface {
	ID() string
	BestHeight() int32
	RequestBlocks(locator []consensus.Hash, hashStop consensus.Hash) error
}

// Manager drives IBD against a chain engine and a pool of sync-capable
// peers.
type Manager struct {
	engine *chain.Engine

	StallTimeout time.Duration

	mu           sync.Mutex
	state        State
	candidates   map[string]PeerSyncClient
	activePeer   string
	targetHeight int32
	stallTimer   *time.Timer
}

// NewManager constructs an idle downloader bound to engine.
func NewManager(engine *chain.Engine) *Manager {
	return &Manager{
		engine:       engine,
		StallTimeout: DefaultStallTimeout,
		candidates:   make(map[string]PeerSyncClient),
		state:        StateIdle,
	}
}

// RegisterPeer makes peer eligible to be chosen as the sync source, and, if
// no download is in progress and peer claims a greater height than the
// local chain, starts one.
func (m *Manager) RegisterPeer(peer PeerSyncClient) error {
	m.mu.Lock()
	m.candidates[peer.ID()] = peer
	syncing := m.state == StateSyncing
	m.mu.Unlock()
	if syncing {
		return nil
	}
	return m.maybeStart()
}

// UnregisterPeer drops a disconnected peer from consideration, reassigning
// an in-flight download if it was the active source.
func (m *Manager) UnregisterPeer(id string) error {
	m.mu.Lock()
	delete(m.candidates, id)
	wasActive := m.activePeer == id
	if m.stallTimer != nil {
		m.stallTimer.Stop()
	}
	m.mu.Unlock()
	if wasActive {
		return m.reassign()
	}
	return nil
}

func (m *Manager) localHeight() (uint64, error) {
	head, ok, err := m.engine.ChainHead()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return head.Height, nil
}

// bestCandidate returns the registered peer with the highest claimed
// height, or false if none claims more than the local chain.
func (m *Manager) bestCandidate(localHeight uint64) (PeerSyncClient, bool) {
	var best PeerSyncClient
	var bestHeight int32 = -1
	for _, p := range m.candidates {
		if p.BestHeight() > bestHeight {
			bestHeight = p.BestHeight()
			best = p
		}
	}
	if best == nil || int64(bestHeight) <= int64(localHeight) {
		return nil, false
	}
	return best, true
}

func (m *Manager) maybeStart() error {
	localHeight, err := m.localHeight()
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.state == StateSyncing {
		m.mu.Unlock()
		return nil
	}
	peer, ok := m.bestCandidate(localHeight)
	if !ok {
		m.state = StateSynced
		m.mu.Unlock()
		return nil
	}
	m.state = StateSyncing
	m.activePeer = peer.ID()
	m.targetHeight = peer.BestHeight()
	m.mu.Unlock()

	return m.requestNext(peer)
}

func (m *Manager) requestNext(peer PeerSyncClient) error {
	head, _, err := m.engine.ChainHead()
	if err != nil {
		return err
	}
	locator, err := m.buildLocator(head.Hash)
	if err != nil {
		return err
	}
	if err := peer.RequestBlocks(locator, consensus.Hash{}); err != nil {
		return m.reassign()
	}
	m.armStallTimer()
	return nil
}

func (m *Manager) armStallTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stallTimer != nil {
		m.stallTimer.Stop()
	}
	m.stallTimer = time.AfterFunc(m.StallTimeout, func() {
		_ = m.reassign()
	})
}

// buildLocator returns the block locator from tip: the tip itself and its
// next locatorStep ancestors one by one, then ancestors at an
// exponentially doubling gap back to genesis (§4.7).
func (m *Manager) buildLocator(tip consensus.Hash) ([]consensus.Hash, error) {
	var locator []consensus.Hash
	cur := tip
	step := 1
	count := 0
	for {
		md, ok, err := m.engine.Persist().GetBlockMetadata(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		locator = append(locator, cur)
		if md.Height == 0 {
			break
		}
		if count >= locatorStep {
			step *= 2
		}
		var next consensus.Hash
		walkHash := cur
		walked := false
		for i := 0; i < step; i++ {
			m2, ok, err := m.engine.Persist().GetBlockMetadata(walkHash)
			if err != nil {
				return nil, err
			}
			if !ok || m2.Height == 0 {
				break
			}
			walkHash = m2.Header.ParentHash
			walked = true
		}
		if !walked {
			break
		}
		next = walkHash
		cur = next
		count++
	}
	return locator, nil
}

// OnBlocksReceived feeds delivered blocks into the chain engine. At the
// first block the engine rejects it stops and returns invalid=true with the
// engine's error; it does not itself ban the peer or reassign the download.
// On success the manager either requests the next batch or, if the local
// height now meets or exceeds the peer's claimed height, marks the sync
// done.
func (m *Manager) OnBlocksReceived(peerID string, blocks []consensus.Block) (invalid bool, err error) {
	m.mu.Lock()
	isActive := m.activePeer == peerID
	m.mu.Unlock()
	if !isActive {
		return false, nil
	}

	for _, b := range blocks {
		if err := m.engine.AddBlock(b); err != nil {
			return true, err
		}
	}

	m.mu.Lock()
	if m.stallTimer != nil {
		m.stallTimer.Stop()
	}
	peer := m.candidates[peerID]
	m.mu.Unlock()

	localHeight, err := m.localHeight()
	if err != nil {
		return false, err
	}
	if peer == nil || int64(localHeight) >= int64(m.targetHeight) {
		m.mu.Lock()
		m.state = StateSynced
		m.mu.Unlock()
		return false, nil
	}
	return false, m.requestNext(peer)
}

// reassign drops the current active peer (presumed stalled or faulty) and
// restarts against the next best candidate, if any.
func (m *Manager) reassign() error {
	m.mu.Lock()
	if m.activePeer != "" {
		delete(m.candidates, m.activePeer)
	}
	m.activePeer = ""
	m.state = StateIdle
	m.mu.Unlock()
	return m.maybeStart()
}

// State returns the downloader's current lifecycle stage.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Progress returns local_height/max(peer_height,1)*100, the percentage
// exposed to the RPC layer during sync (§4.7).
func (m *Manager) Progress() (float64, error) {
	localHeight, err := m.localHeight()
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	target := m.targetHeight
	m.mu.Unlock()
	if target < 1 {
		target = 1
	}
	return float64(localHeight) / float64(target) * 100, nil
}
