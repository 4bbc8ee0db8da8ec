package svm

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Host is the subset of an SVM test environment that Wormhole setup needs.
// A LiteSVM or solana-test-validator binding satisfies it by loading the
// program and writing raw account state.
type Host interface {
	AddProgram(programID solana.PublicKey, elf []byte) error
	SetAccount(address solana.PublicKey, account Account) error
	GetAccount(address solana.PublicKey) (Account, bool)
	RemoveAccount(address solana.PublicKey) error
}

// MemoryHost is an in-memory Host.
type MemoryHost struct {
	mu       sync.Mutex
	programs map[solana.PublicKey][]byte
	accounts map[solana.PublicKey]Account
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		programs: make(map[solana.PublicKey][]byte),
		accounts: make(map[solana.PublicKey]Account),
	}
}

func (h *MemoryHost) AddProgram(programID solana.PublicKey, elf []byte) error {
	if len(elf) == 0 {
		return fmt.Errorf("empty program binary for %s", programID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.programs[programID] = append([]byte{}, elf...)
	h.accounts[programID] = Account{
		Lamports:   RentExemptLamports(len(elf)),
		Owner:      solana.BPFLoaderUpgradeableProgramID,
		Executable: true,
	}
	return nil
}

// Program returns the binary loaded at programID.
func (h *MemoryHost) Program(programID solana.PublicKey) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	elf, ok := h.programs[programID]
	if !ok {
		return nil, false
	}
	return append([]byte{}, elf...), true
}

func (h *MemoryHost) SetAccount(address solana.PublicKey, account Account) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	account.Data = append([]byte{}, account.Data...)
	h.accounts[address] = account
	return nil
}

func (h *MemoryHost) GetAccount(address solana.PublicKey) (Account, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	account, ok := h.accounts[address]
	if !ok {
		return Account{}, false
	}
	account.Data = append([]byte{}, account.Data...)
	return account, true
}

func (h *MemoryHost) RemoveAccount(address solana.PublicKey) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.accounts[address]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	delete(h.accounts, address)
	return nil
}

// Len returns the number of accounts, programs included.
func (h *MemoryHost) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.accounts)
}
