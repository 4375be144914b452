package rpcclient

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const permit2NonceBitmapABI = `[{"inputs":[{"internalType":"address","name":"","type":"address"},{"internalType":"uint256","name":"","type":"uint256"}],"name":"nonceBitmap","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var permit2ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(permit2NonceBitmapABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Permit2Reader adapts a Client into pkg/nonce.BitmapReader, calling the
// canonical Permit2 deployment's nonceBitmap(address,uint256) view.
type Permit2Reader struct {
	client  *Client
	address common.Address
}

// NewPermit2Reader builds a BitmapReader bound to the Permit2 deployment at address.
func NewPermit2Reader(client *Client, address common.Address) *Permit2Reader {
	return &Permit2Reader{client: client, address: address}
}

// NonceBitmap implements pkg/nonce.BitmapReader.
func (p *Permit2Reader) NonceBitmap(ctx context.Context, owner common.Address, wordPos *big.Int) (*big.Int, error) {
	outputs, err := p.client.CallContract(ctx, p.address, permit2ABI, "nonceBitmap", owner, wordPos)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("rpcclient: nonceBitmap returned %d outputs, expected 1", len(outputs))
	}
	bitmap, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("rpcclient: nonceBitmap returned unexpected type %T", outputs[0])
	}
	return bitmap, nil
}
