package solana

import (
	"context"
	"strconv"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"tradexec/internal/domain"
)

// SignatureStatus is the adapter's view of one transaction's settlement
// progress. Err carries the on-chain execution error verbatim when the
// transaction landed but failed.
type SignatureStatus struct {
	Landed    bool // observed by the cluster at the requested commitment
	Finalized bool
	Err       any
}

// ChainRPC abstracts the node operations the adapter needs. Narrow on
// purpose: tests substitute a fake without a JSON-RPC server.
type ChainRPC interface {
	// TokenBalance returns the owner's balance for a mint in raw units plus
	// the mint's decimals. A missing token account is a zero balance.
	TokenBalance(ctx context.Context, owner, mint solanago.PublicKey) (uint64, int, error)

	// MintDecimals returns the decimal precision of a mint.
	MintDecimals(ctx context.Context, mint solanago.PublicKey) (int, error)

	// SendTransaction broadcasts a signed transaction.
	SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)

	// SignatureStatus polls settlement progress; nil means the cluster has
	// not seen the signature yet.
	SignatureStatus(ctx context.Context, sig solanago.Signature) (*SignatureStatus, error)
}

type rpcNode struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewChainRPC wraps a solana-go RPC client at the given commitment level.
func NewChainRPC(endpoint, commitment string) ChainRPC {
	return &rpcNode{
		client:     rpc.New(endpoint),
		commitment: rpc.CommitmentType(commitment),
	}
}

func (n *rpcNode) TokenBalance(ctx context.Context, owner, mint solanago.PublicKey) (uint64, int, error) {
	ata, _, err := solanago.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, 0, domain.NewInputError("derive token account", err)
	}

	res, err := n.client.GetTokenAccountBalance(ctx, ata, n.commitment)
	if err != nil {
		// An owner who never held the token has no token account at all.
		if strings.Contains(err.Error(), "could not find account") {
			return 0, 0, nil
		}
		return 0, 0, domain.NewTransportError("getTokenAccountBalance", err)
	}
	if res == nil || res.Value == nil {
		return 0, 0, nil
	}

	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, domain.NewTransportError("parse token balance", err)
	}
	return amount, int(res.Value.Decimals), nil
}

func (n *rpcNode) MintDecimals(ctx context.Context, mint solanago.PublicKey) (int, error) {
	res, err := n.client.GetTokenSupply(ctx, mint, n.commitment)
	if err != nil {
		return 0, domain.NewTransportError("getTokenSupply", err)
	}
	if res == nil || res.Value == nil {
		return 0, domain.NewResolutionError("mint not found: " + mint.String())
	}
	return int(res.Value.Decimals), nil
}

func (n *rpcNode) SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	sig, err := n.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: n.commitment,
	})
	if err != nil {
		return solanago.Signature{}, domain.NewTransportError("sendTransaction", err)
	}
	return sig, nil
}

func (n *rpcNode) SignatureStatus(ctx context.Context, sig solanago.Signature) (*SignatureStatus, error) {
	res, err := n.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, domain.NewTransportError("getSignatureStatuses", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return nil, nil
	}

	status := res.Value[0]
	landed := status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized
	if n.commitment == rpc.CommitmentProcessed {
		landed = landed || status.ConfirmationStatus == rpc.ConfirmationStatusProcessed
	}

	return &SignatureStatus{
		Landed:    landed,
		Finalized: status.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
		Err:       status.Err,
	}, nil
}
