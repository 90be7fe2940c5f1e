// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package core

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/core/trace"
)

// errReverted is the execution error recorded for transactions whose effects
// were undone by the revert callback.
var errReverted = errors.New("transaction reverted by chain policy")

// StateProcessor is the execution engine. Transactions are pre-executed
// speculatively in parallel, then applied strictly in order on the block
// overlay.
//
// StateProcessor implements Executor.
type StateProcessor struct {
	chain      *chain.Chain
	prefetcher *statePrefetcher
}

// NewStateProcessor initialises a new StateProcessor. With speculative set,
// every block gets a parallel pre-execution pass.
func NewStateProcessor(c *chain.Chain, speculative bool) *StateProcessor {
	p := &StateProcessor{chain: c}
	if speculative {
		p.prefetcher = newStatePrefetcher(c.EthConfig())
	}
	return p
}

// ExecuteBlock processes the transactions of args.Block on args.State and
// returns their receipts. Any transaction that cannot be applied fails the
// whole block; no receipts are returned in that case.
func (p *StateProcessor) ExecuteBlock(args *ExecuteArgs) (types.Receipts, error) {
	var (
		block     = args.Block
		header    = block.Header()
		txs       = block.Transactions()
		config    = p.chain.EthConfig()
		gp        = new(ethcore.GasPool).AddGas(header.GasLimit)
		usedGas   = new(uint64)
		receipts  = make(types.Receipts, 0, len(txs))
		blockHash = block.Hash()
		context   = newBlockContext(header, args.Hashes)
	)
	if len(args.Senders) != len(txs) || len(args.Authorities) != len(txs) {
		return nil, fmt.Errorf("%w: %d senders and %d authority lists for %d transactions", ErrExecution, len(args.Senders), len(args.Authorities), len(txs))
	}
	var speculative []speculativeResult
	if p.prefetcher != nil && len(txs) > 1 {
		speculative = p.prefetcher.Prefetch(args, context)
	}
	start := time.Now()

	// Apply pre-execution system calls.
	sysEVM := vm.NewEVM(context, args.State, config, vm.Config{})
	if beaconRoot := header.ParentBeaconRoot; beaconRoot != nil {
		ethcore.ProcessBeaconBlockRoot(*beaconRoot, sysEVM)
	}
	if args.Rules.IsPrague {
		ethcore.ProcessParentBlockHash(header.ParentHash, sysEVM)
	}

	// Iterate over and process the individual transactions
	for i, tx := range txs {
		receipt, err := p.applyTransaction(args, context, gp, usedGas, blockHash, i, tx)
		if err != nil {
			return nil, fmt.Errorf("%w: could not apply tx %d [%v]: %w", ErrExecution, i, tx.Hash().Hex(), err)
		}
		if speculative != nil && !speculative[i].matches(receipt) {
			args.Metrics.IncRetries()
		}
		receipts = append(receipts, receipt)
	}
	args.Metrics.SetTxExecTime(time.Since(start))
	return receipts, nil
}

func tracerHooks(args *ExecuteArgs, i int) *tracing.Hooks {
	var hooks []*tracing.Hooks
	if i < len(args.CallTracers) && args.CallTracers[i] != nil {
		hooks = append(hooks, args.CallTracers[i].Hooks())
	}
	if i < len(args.StateTracers) && args.StateTracers[i] != nil {
		hooks = append(hooks, args.StateTracers[i].Hooks())
	}
	return trace.Combine(hooks...)
}

// applyTransaction applies the transaction at index i and asks the revert
// callback whether its effects stand. A reverted transaction keeps its nonce
// bump and pays for the gas it used, but nothing else survives.
func (p *StateProcessor) applyTransaction(args *ExecuteArgs, context vm.BlockContext, gp *ethcore.GasPool, usedGas *uint64, blockHash common.Hash, i int, tx *types.Transaction) (receipt *types.Receipt, err error) {
	var (
		statedb = args.State
		header  = args.Block.Header()
		hooks   = tracerHooks(args, i)
	)
	msg, err := ethcore.TransactionToMessage(tx, args.Rules.Signer, header.BaseFee)
	if err != nil {
		return nil, err
	}
	if msg.From != args.Senders[i] {
		return nil, fmt.Errorf("sender mismatch: recovered %v, message %v", args.Senders[i], msg.From)
	}
	var vmdb vm.StateDB = statedb
	if hooks != nil {
		vmdb = state.NewHookedState(statedb, hooks)
	}
	evm := vm.NewEVM(context, vmdb, p.chain.EthConfig(), vm.Config{Tracer: hooks})
	statedb.SetTxContext(tx.Hash(), i)

	if hooks != nil {
		if hooks.OnTxStart != nil {
			hooks.OnTxStart(evm.GetVMContext(), tx, msg.From)
		}
		if hooks.OnTxEnd != nil {
			defer func() { hooks.OnTxEnd(receipt, err) }()
		}
	}
	accounts := []common.Address{msg.From}
	for _, auth := range args.Authorities[i] {
		if auth != nil {
			accounts = append(accounts, *auth)
		}
	}
	txState := chain.NewTxState(statedb, accounts...)
	snapshot := statedb.Snapshot()

	// Apply the transaction to the current state (included in the env).
	result, err := ethcore.ApplyMessage(evm, msg, gp)
	if err != nil {
		return nil, err
	}
	txState.Fee = new(uint256.Int).Mul(uint256.NewInt(result.UsedGas), uint256.MustFromBig(msg.GasPrice))

	if args.Revert != nil && args.Revert(i, msg.From, tx, txState) {
		statedb.RevertToSnapshot(snapshot)
		if i < len(args.StateTracers) && args.StateTracers[i] != nil {
			args.StateTracers[i].Reset()
		}
		chargeReverted(evm.StateDB, msg, result.UsedGas, header.BaseFee, header.Coinbase)
		result = &ethcore.ExecutionResult{UsedGas: result.UsedGas, RefundedGas: result.RefundedGas, Err: errReverted}
		log.Debug("Reverted transaction", "number", header.Number, "index", i, "hash", tx.Hash(), "sender", msg.From)
	}
	// Update the state with pending changes.
	evm.StateDB.Finalise(true)
	*usedGas += result.UsedGas

	return makeReceipt(evm, msg, result, statedb, header.Number, blockHash, tx, *usedGas), nil
}

// chargeReverted re-applies what a reverted transaction still costs: the
// nonce bump and the fee for the gas used, of which the priority part goes
// to the coinbase.
func chargeReverted(db vm.StateDB, msg *ethcore.Message, gasUsed uint64, baseFee *big.Int, coinbase common.Address) {
	db.SetNonce(msg.From, msg.Nonce+1, tracing.NonceChangeEoACall)

	gas := uint256.NewInt(gasUsed)
	price := uint256.MustFromBig(msg.GasPrice)
	db.SubBalance(msg.From, new(uint256.Int).Mul(gas, price), tracing.BalanceDecreaseGasBuy)

	tip := new(uint256.Int).Set(price)
	if baseFee != nil {
		tip.Sub(tip, uint256.MustFromBig(baseFee))
	}
	db.AddBalance(coinbase, tip.Mul(tip, gas), tracing.BalanceIncreaseRewardTransactionFee)
}

// makeReceipt generates the receipt object for a transaction given its
// execution result.
func makeReceipt(evm *vm.EVM, msg *ethcore.Message, result *ethcore.ExecutionResult, statedb *state.StateDB, blockNumber *big.Int, blockHash common.Hash, tx *types.Transaction, usedGas uint64) *types.Receipt {
	receipt := &types.Receipt{Type: tx.Type(), CumulativeGasUsed: usedGas}
	if result.Failed() {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		receipt.Status = types.ReceiptStatusSuccessful
	}
	receipt.TxHash = tx.Hash()
	receipt.GasUsed = result.UsedGas
	receipt.EffectiveGasPrice = new(big.Int).Set(msg.GasPrice)

	// If the transaction created a contract, store the creation address in the receipt.
	if tx.To() == nil {
		receipt.ContractAddress = crypto.CreateAddress(evm.TxContext.Origin, tx.Nonce())
	}
	// Set the receipt logs and create the bloom filter.
	receipt.Logs = statedb.GetLogs(tx.Hash(), blockNumber.Uint64(), blockHash)
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})
	receipt.BlockHash = blockHash
	receipt.BlockNumber = new(big.Int).Set(blockNumber)
	receipt.TransactionIndex = uint(statedb.TxIndex())
	return receipt
}
